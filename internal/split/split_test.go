package split

import (
	"testing"
)

func TestPlanChunks(t *testing.T) {
	t.Run("no outlines splits by page count", func(t *testing.T) {
		ranges := planChunks(40, nil, 15)
		want := []pageRange{
			{start: 0, end: 15},
			{start: 15, end: 30},
			{start: 30, end: 40},
		}
		assertRanges(t, ranges, want)
	})

	t.Run("outline sections become chunks", func(t *testing.T) {
		outlines := []Outline{
			{Title: "Intro", Page: 0},
			{Title: "Financials", Page: 10},
			{Title: "Appendix", Page: 22},
		}
		ranges := planChunks(30, outlines, 15)
		want := []pageRange{
			{start: 0, end: 10, section: "Intro"},
			{start: 10, end: 22, section: "Financials"},
			{start: 22, end: 30, section: "Appendix"},
		}
		assertRanges(t, ranges, want)
	})

	t.Run("oversized section is split further", func(t *testing.T) {
		outlines := []Outline{
			{Title: "Short", Page: 0},
			{Title: "Long", Page: 5},
		}
		ranges := planChunks(45, outlines, 15)
		want := []pageRange{
			{start: 0, end: 5, section: "Short"},
			{start: 5, end: 20, section: "Long"},
			{start: 20, end: 35, section: "Long"},
			{start: 35, end: 45, section: "Long"},
		}
		assertRanges(t, ranges, want)
	})

	t.Run("pages before the first outline get a chunk", func(t *testing.T) {
		outlines := []Outline{{Title: "Body", Page: 4}}
		ranges := planChunks(20, outlines, 15)
		want := []pageRange{
			{start: 0, end: 4},
			{start: 4, end: 19},
			{start: 19, end: 20, section: "Body"},
		}
		// Section splitting: Body covers 4-20 (16 pages), cut at 19.
		want[1].section = "Body"
		assertRanges(t, ranges, want)
	})

	t.Run("chunks cover every page exactly once", func(t *testing.T) {
		outlines := []Outline{
			{Title: "A", Page: 3},
			{Title: "B", Page: 17},
			{Title: "C", Page: 31},
		}
		ranges := planChunks(100, outlines, 10)
		covered := 0
		prevEnd := 0
		for _, r := range ranges {
			if r.start != prevEnd {
				t.Errorf("gap or overlap at page %d (range starts at %d)", prevEnd, r.start)
			}
			covered += r.end - r.start
			prevEnd = r.end
		}
		if covered != 100 {
			t.Errorf("expected 100 pages covered, got %d", covered)
		}
	})
}

func TestCombineMarkdown(t *testing.T) {
	if got := CombineMarkdown(nil); got != "" {
		t.Errorf("expected empty string for no chunks, got %q", got)
	}
	if got := CombineMarkdown([]string{"only"}); got != "only" {
		t.Errorf("single chunk should pass through, got %q", got)
	}
	got := CombineMarkdown([]string{"first\n", " second"})
	want := "first\n\n---\n\nsecond"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func assertRanges(t *testing.T, got, want []pageRange) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

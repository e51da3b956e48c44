package problems

import (
	"slices"
	"strings"
	"testing"
)

// padPage appends filler prose so a fixture only trips the pattern
// under test, not the length-based ones.
func padPage(core string) string {
	filler := strings.Repeat("The quarterly financial report shows steady account balance figures. ", 5)
	return core + "\n\n" + filler
}

func TestRegistryExhaustive(t *testing.T) {
	for _, p := range All() {
		if !Valid(p) {
			t.Errorf("pattern %q listed in All() but missing from registry", p)
		}
	}
	if Valid(EmptyContent) {
		t.Error("empty_content is synthesized, it must not be in the registry")
	}
	if len(All()) != 14 {
		t.Errorf("expected 14 registered patterns, got %d", len(All()))
	}
}

func TestDetect_OnlyRunsEnabled(t *testing.T) {
	content := "short"

	results := Detect(content, []Pattern{GarbledText})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if _, ok := results[VeryShortPages]; ok {
		t.Error("disabled pattern should not appear in results")
	}
}

func TestDetect_UnknownPatternIsFalse(t *testing.T) {
	results := Detect("text", []Pattern{"no_such_pattern"})
	if results["no_such_pattern"] {
		t.Error("unknown pattern should report false, not fire")
	}
}

func TestEmptyTables(t *testing.T) {
	emptyRows := strings.Repeat("|   |   |   |\n", 6)
	if !detectEmptyTables(emptyRows) {
		t.Error("six empty table rows should fire empty_tables")
	}

	filled := strings.Repeat("| Jan | 100 | 200 |\n", 6)
	if detectEmptyTables(filled) {
		t.Error("filled table rows should not fire empty_tables")
	}
}

func TestLowContentDensity(t *testing.T) {
	if !detectLowContentDensity("just a few words") {
		t.Error("sparse page should fire low_content_density")
	}
	if detectLowContentDensity(strings.Repeat("abcdefghij", 15)) {
		t.Error("dense page should not fire")
	}
	if !detectLowContentDensity("") {
		t.Error("empty content should fire")
	}
}

func TestMissingNumbers(t *testing.T) {
	rows := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		rows = append(rows, "| name | description | notes |")
	}
	table := strings.Join(rows, "\n")
	if !detectMissingNumbers(table) {
		t.Error("large table with no numbers should fire missing_numbers")
	}

	withNums := strings.ReplaceAll(table, "notes", "1250")
	if detectMissingNumbers(withNums) {
		t.Error("table containing numbers should not fire")
	}

	if detectMissingNumbers("plain prose with no table") {
		t.Error("no table means nothing to check")
	}
}

func TestInconsistentColumns(t *testing.T) {
	inconsistent := "| a | b |\n| c | d | e |\n| f | g | h | i |\n| j |"
	if !detectInconsistentColumns(inconsistent) {
		t.Error("more than two distinct column counts should fire")
	}

	// Header separator may differ from data rows by one count.
	consistent := "| a | b | c |\n|---|---|---|\n| 1 | 2 | 3 |\n| 4 | 5 | 6 |"
	if detectInconsistentColumns(consistent) {
		t.Error("uniform table should not fire")
	}
}

func TestRepeatedCharacters(t *testing.T) {
	if !detectRepeatedCharacters("value: aaaaaaaaaaaa end") {
		t.Error("12-character run should fire")
	}
	if detectRepeatedCharacters("rule: ------------ end") {
		t.Error("dashes are decorative and should not fire")
	}
	if detectRepeatedCharacters("normal text with no runs") {
		t.Error("clean text should not fire")
	}
}

func TestGarbledText(t *testing.T) {
	if !detectGarbledText("ab@#$%^&*@#$%^&*") {
		t.Error("symbol-heavy content should fire garbled_text")
	}
	if !detectGarbledText("@#$%^&*") {
		t.Error("all-special content should fire")
	}
	if detectGarbledText("Perfectly ordinary sentence, with punctuation.") {
		t.Error("ordinary prose should not fire")
	}
}

func TestHeaderOnlyTables(t *testing.T) {
	headerOnly := "| Date | Amount |\n|---|---|\n| Jan | 100 |"
	if !detectHeaderOnlyTables(headerOnly) {
		t.Error("header with a single data row should fire")
	}

	full := "| Date | Amount |\n|---|---|\n| Jan | 100 |\n| Feb | 200 |"
	if detectHeaderOnlyTables(full) {
		t.Error("two data rows should not fire")
	}
}

func TestVeryShortPages(t *testing.T) {
	if !detectVeryShortPages("tiny page") {
		t.Error("short page should fire")
	}
	if detectVeryShortPages(strings.Repeat("word ", 50)) {
		t.Error("250-char page should not fire")
	}
}

func TestMissingKeywords(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 12)
	if !detectMissingKeywords(long) {
		t.Error("substantial page without financial terms should fire")
	}

	if detectMissingKeywords(long + " total balance") {
		t.Error("page with a keyword should not fire")
	}
	if detectMissingKeywords("short page") {
		t.Error("pages under the size floor are not checked")
	}

	hebrew := strings.Repeat("טקסט כללי ללא מונחים ", 40) + " יתרה"
	if detectMissingKeywords(hebrew) {
		t.Error("hebrew keyword should count")
	}
}

func TestMalformedStructure(t *testing.T) {
	malformed := "| Date | Amount |\n| --x-- | ==0== |\n| Jan | 100 |"
	if !detectMalformedStructure(malformed) {
		t.Error("separator with invalid characters should fire")
	}

	wellFormed := "| Date | Amount |\n| --- | --- |\n| Jan | 100 |"
	if detectMalformedStructure(wellFormed) {
		t.Error("clean separator should not fire")
	}
}

func TestDuplicateContent(t *testing.T) {
	para := "This exact paragraph of substantial length appears repeatedly in the page output."
	dup := strings.Join([]string{para, para, para}, "\n\n")
	if !detectDuplicateContent(dup) {
		t.Error("paragraph repeated three times should fire")
	}

	unique := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	if detectDuplicateContent(unique) {
		t.Error("distinct paragraphs should not fire")
	}
}

func TestUnknownCharacters(t *testing.T) {
	if !detectUnknownCharacters("ab□□□cd") {
		t.Error("high replacement-glyph ratio should fire")
	}
	if detectUnknownCharacters(strings.Repeat("clean text ", 20) + "□") {
		t.Error("one glyph in a long page should not fire")
	}
}

func TestRepetitiveNumbers(t *testing.T) {
	if !detectRepetitiveNumbers("| 1000 | 1000 | 1000 |") {
		t.Error("number repeated across table cells should fire")
	}
	if !detectRepetitiveNumbers("totals: 1000 1000 1000") {
		t.Error("number repeated in running text should fire")
	}
	if detectRepetitiveNumbers("| 1000 | 2000 | 3000 |") {
		t.Error("distinct numbers should not fire")
	}
	if detectRepetitiveNumbers("1000 2000 1000 2000") {
		t.Error("alternating numbers should not fire")
	}
}

func TestMarkdownImages(t *testing.T) {
	if !detectMarkdownImages("intro ![chart](figure-5.png) outro") {
		t.Error("image reference should fire")
	}
	if detectMarkdownImages("plain [link](somewhere) text") {
		t.Error("plain link should not fire")
	}
}

func TestHasAny(t *testing.T) {
	t.Run("empty content always reports a problem", func(t *testing.T) {
		has, detected := HasAny("", All())
		if !has {
			t.Fatal("empty content must report a problem")
		}
		if !slices.Contains(detected, EmptyContent) {
			t.Errorf("expected empty_content, got %v", detected)
		}
	})

	t.Run("short untabled page fires both size patterns", func(t *testing.T) {
		has, detected := HasAny("just a line of text", []Pattern{VeryShortPages, LowContentDensity})
		if !has {
			t.Fatal("expected a problem")
		}
		if !slices.Contains(detected, VeryShortPages) || !slices.Contains(detected, LowContentDensity) {
			t.Errorf("expected very_short_pages and low_content_density, got %v", detected)
		}
	})

	t.Run("clean page", func(t *testing.T) {
		clean := padPage("| Date | Debit | Credit | Balance |\n|---|---|---|---|\n| 01/02 | 100 | | 900 |\n| 03/02 | | 50 | 950 |")
		has, detected := HasAny(clean, All())
		if has {
			t.Errorf("clean page should pass, got %v", detected)
		}
	})

	t.Run("detection respects enabled subset", func(t *testing.T) {
		has, _ := HasAny("short", []Pattern{MarkdownImages})
		if has {
			t.Error("short page should pass when only markdown_images is enabled")
		}
	})
}

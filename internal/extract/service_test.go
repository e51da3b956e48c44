package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/providers"
	"github.com/pagelens/pagelens/internal/split"
)

func writeChunkFiles(t *testing.T, n int) []split.Chunk {
	t.Helper()
	dir := t.TempDir()
	chunks := make([]split.Chunk, n)
	for i := range chunks {
		path := filepath.Join(dir, "chunk.pdf")
		if n > 1 {
			path = filepath.Join(dir, "chunk"+string(rune('a'+i))+".pdf")
		}
		if err := os.WriteFile(path, []byte("%PDF-fake"), 0o644); err != nil {
			t.Fatal(err)
		}
		chunks[i] = split.Chunk{Path: path, StartPage: i * 2, PageCount: 2}
	}
	return chunks
}

func TestOCRChunks(t *testing.T) {
	svc := NewService(providers.NewRegistry(), nil, nil, slog.Default())

	t.Run("rebases page indexes per chunk", func(t *testing.T) {
		chunks := writeChunkFiles(t, 3)
		ocr := &providers.MockOCR{Result: &providers.OCRResult{
			Pages: []providers.PageText{
				{Index: 0, Markdown: "first"},
				{Index: 1, Markdown: "second"},
			},
			CostUSD: 0.5,
		}}

		chunkPages, cost, err := svc.ocrChunks(context.Background(), ocr, chunks)
		if err != nil {
			t.Fatalf("ocrChunks: %v", err)
		}
		if cost != 1.5 {
			t.Errorf("cost = %v, want 1.5", cost)
		}
		if got := chunkPages[2][1].Index; got != 5 {
			t.Errorf("last page index = %d, want 5", got)
		}
		if got := chunkPages[1][0].Index; got != 2 {
			t.Errorf("second chunk first page index = %d, want 2", got)
		}
	})

	t.Run("chunk failure fails the run", func(t *testing.T) {
		chunks := writeChunkFiles(t, 2)
		ocr := &providers.MockOCR{Err: context.DeadlineExceeded}

		_, _, err := svc.ocrChunks(context.Background(), ocr, chunks)
		if err == nil {
			t.Fatal("expected error from failing provider")
		}
		if !strings.Contains(err.Error(), "OCR failed on chunk") {
			t.Errorf("error = %v, want chunk failure", err)
		}
	})
}

func TestPickOCR(t *testing.T) {
	reg := providers.NewRegistry()
	mistral := &providers.MockOCR{Result: &providers.OCRResult{}}
	reg.RegisterOCR("mistral", mistral)

	svc := NewService(reg, nil, nil, slog.Default())
	cfg := config.DefaultConfig()

	t.Run("named provider", func(t *testing.T) {
		ocr, err := svc.pickOCR(cfg, "mistral")
		if err != nil {
			t.Fatalf("pickOCR: %v", err)
		}
		if ocr != providers.OCRProvider(mistral) {
			t.Error("expected the registered provider instance")
		}
	})

	t.Run("unknown name errors", func(t *testing.T) {
		if _, err := svc.pickOCR(cfg, "nope"); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})

	t.Run("falls back to enabled provider from config", func(t *testing.T) {
		ocr, err := svc.pickOCR(cfg, "")
		if err != nil {
			t.Fatalf("pickOCR: %v", err)
		}
		if ocr.Name() != mistral.Name() {
			t.Errorf("provider = %s, want %s", ocr.Name(), mistral.Name())
		}
	})

	t.Run("nothing registered", func(t *testing.T) {
		empty := NewService(providers.NewRegistry(), nil, nil, slog.Default())
		if _, err := empty.pickOCR(cfg, ""); err != ErrNoOCRProvider {
			t.Errorf("err = %v, want ErrNoOCRProvider", err)
		}
	})
}

func TestValidateRespectsToggles(t *testing.T) {
	reg := providers.NewRegistry()
	reg.RegisterExtractor("openai", &providers.MockExtractor{Fallback: "alt"})

	svc := NewService(reg, nil, nil, slog.Default())
	pages := []providers.PageText{{Index: 0, Markdown: "@@ ## $$"}}

	cfg := config.DefaultConfig()
	cfg.Validation.Extractor = "openai"

	t.Run("runs when enabled", func(t *testing.T) {
		cfg.Validation.Enabled = true
		report := svc.validate(context.Background(), cfg, Request{}, pages)
		if report == nil {
			t.Fatal("expected a report")
		}
		if report.TotalPages != 1 {
			t.Errorf("TotalPages = %d, want 1", report.TotalPages)
		}
	})

	t.Run("config disabled", func(t *testing.T) {
		cfg.Validation.Enabled = false
		if report := svc.validate(context.Background(), cfg, Request{}, pages); report != nil {
			t.Error("expected no report when disabled")
		}
	})

	t.Run("request override wins", func(t *testing.T) {
		cfg.Validation.Enabled = false
		on := true
		report := svc.validate(context.Background(), cfg, Request{EnableValidation: &on}, pages)
		if report == nil {
			t.Error("expected a report with override on")
		}

		cfg.Validation.Enabled = true
		off := false
		if report := svc.validate(context.Background(), cfg, Request{EnableValidation: &off}, pages); report != nil {
			t.Error("expected no report with override off")
		}
	})

	t.Run("missing extractor degrades", func(t *testing.T) {
		cfg.Validation.Enabled = true
		cfg.Validation.Extractor = "absent"
		if report := svc.validate(context.Background(), cfg, Request{}, pages); report != nil {
			t.Error("expected no report when extractor unavailable")
		}
		cfg.Validation.Extractor = "openai"
	})
}

func TestBuildSections(t *testing.T) {
	chunks := []split.Chunk{
		{StartPage: 0, PageCount: 2, Section: "Overview"},
		{StartPage: 2, PageCount: 1},
	}
	chunkPages := [][]providers.PageText{
		{{Index: 0, Markdown: "p0"}, {Index: 1, Markdown: "p1"}},
		{{Index: 2, Markdown: "p2"}},
	}
	// Page 1 was replaced during validation.
	final := []providers.PageText{
		{Index: 0, Markdown: "p0"},
		{Index: 1, Markdown: "p1 fixed"},
		{Index: 2, Markdown: "p2"},
	}

	sections := buildSections(chunks, chunkPages, final)
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if sections[0].Title != "Overview" {
		t.Errorf("title = %q, want Overview", sections[0].Title)
	}
	if sections[1].Title != "part_02" {
		t.Errorf("untitled chunk = %q, want part_02", sections[1].Title)
	}
	if !strings.Contains(sections[0].Markdown, "p1 fixed") {
		t.Errorf("section 1 should carry the replaced page text: %q", sections[0].Markdown)
	}
}

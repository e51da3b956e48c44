// Package split chunks PDFs for provider-sized requests. Documents are
// divided along top-level outline sections when present, falling back
// to fixed page-count chunks, and single pages can be rendered to PNG
// for vision-based extraction.
package split

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	defaultMaxPagesPerChunk = 15

	// Outline-based splitting considers at most this many top-level
	// sections; deeply bookmarked documents degrade to page-count
	// chunks beyond that.
	maxOutlineSections = 4
)

// Chunk is one piece of a split document.
type Chunk struct {
	Path      string // Chunk PDF on disk
	StartPage int    // Zero-based offset into the original document
	PageCount int
	Section   string // Outline title when split along an outline
}

// Outline is a top-level bookmark with its zero-based starting page.
type Outline struct {
	Title string
	Page  int
}

// Splitter divides PDFs into provider-sized chunks.
type Splitter struct {
	maxPagesPerChunk int
	logger           *slog.Logger
}

// Config configures a Splitter.
type Config struct {
	MaxPagesPerChunk int
	Logger           *slog.Logger
}

// New creates a splitter.
func New(cfg Config) *Splitter {
	if cfg.MaxPagesPerChunk <= 0 {
		cfg.MaxPagesPerChunk = defaultMaxPagesPerChunk
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		maxPagesPerChunk: cfg.MaxPagesPerChunk,
		logger:           logger.With("component", "split"),
	}
}

// PageCount returns the number of pages in a PDF.
func PageCount(doc []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(doc), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// Split divides the document into chunks, writing chunk PDFs into
// workDir. A document within the page limit is returned whole without
// touching disk.
func (s *Splitter) Split(doc []byte, workDir string) ([]Chunk, error) {
	total, err := PageCount(doc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("splitting document", "pages", total)

	if total <= s.maxPagesPerChunk {
		path := filepath.Join(workDir, "chunk_0000.pdf")
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write chunk: %w", err)
		}
		return []Chunk{{Path: path, StartPage: 0, PageCount: total}}, nil
	}

	outlines := s.topOutlines(doc)
	ranges := planChunks(total, outlines, s.maxPagesPerChunk)

	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		path := filepath.Join(workDir, fmt.Sprintf("chunk_%04d.pdf", i))
		if err := writeChunk(doc, path, r.start, r.end); err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{
			Path:      path,
			StartPage: r.start,
			PageCount: r.end - r.start,
			Section:   r.section,
		})
	}
	s.logger.Info("document split", "chunks", len(chunks), "outline_sections", len(outlines))
	return chunks, nil
}

// topOutlines returns the document's top-level bookmarks, capped and
// sorted by page. Outline extraction failures degrade to page-count
// splitting rather than failing the run.
func (s *Splitter) topOutlines(doc []byte) []Outline {
	bms, err := api.Bookmarks(bytes.NewReader(doc), nil)
	if err != nil {
		s.logger.Warn("failed to read outlines, splitting by page count", "error", err)
		return nil
	}

	outlines := make([]Outline, 0, len(bms))
	for _, bm := range bms {
		if bm.PageFrom < 1 {
			continue
		}
		outlines = append(outlines, Outline{Title: bm.Title, Page: bm.PageFrom - 1})
	}
	sort.Slice(outlines, func(i, j int) bool { return outlines[i].Page < outlines[j].Page })

	if len(outlines) > maxOutlineSections {
		s.logger.Info("limiting outline sections", "found", len(outlines), "kept", maxOutlineSections)
		outlines = outlines[:maxOutlineSections]
	}
	return outlines
}

type pageRange struct {
	start   int // zero-based, inclusive
	end     int // exclusive
	section string
}

// planChunks computes the chunk boundaries. Outline sections become
// chunks, oversized sections are split further, and with no outlines
// the whole document is cut into fixed-size pieces.
func planChunks(totalPages int, outlines []Outline, maxPages int) []pageRange {
	if len(outlines) == 0 {
		return splitRange(0, totalPages, maxPages, "")
	}

	var ranges []pageRange
	for i, o := range outlines {
		start := o.Page
		end := totalPages
		if i+1 < len(outlines) {
			end = outlines[i+1].Page
		}
		if end <= start {
			continue
		}
		// The last kept outline absorbs everything after it, including
		// sections beyond the outline cap.
		ranges = append(ranges, splitRange(start, end, maxPages, o.Title)...)
	}

	// Pages before the first outline still need a chunk.
	if first := outlines[0].Page; first > 0 {
		ranges = append(splitRange(0, first, maxPages, ""), ranges...)
	}
	return ranges
}

// splitRange cuts [start, end) into pieces of at most maxPages.
func splitRange(start, end, maxPages int, section string) []pageRange {
	var ranges []pageRange
	for cur := start; cur < end; {
		chunkEnd := min(cur+maxPages, end)
		ranges = append(ranges, pageRange{start: cur, end: chunkEnd, section: section})
		cur = chunkEnd
	}
	return ranges
}

// writeChunk extracts the page range [start, end) into a new PDF.
func writeChunk(doc []byte, path string, start, end int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	defer f.Close()

	selected := []string{fmt.Sprintf("%d-%d", start+1, end)}
	if err := api.Trim(bytes.NewReader(doc), f, selected, nil); err != nil {
		return fmt.Errorf("failed to extract pages %d-%d: %w", start+1, end, err)
	}
	return nil
}

// CombineMarkdown joins per-chunk markdown into one document with a
// visual separator between chunks.
func CombineMarkdown(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	if len(chunks) == 1 {
		return chunks[0]
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = strings.TrimSpace(c)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

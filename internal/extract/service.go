// Package extract runs the end-to-end document pipeline: chunk the
// PDF, feed chunks through the primary OCR provider, cross-validate
// the extracted pages, and assemble per-section markdown.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/jobs"
	"github.com/pagelens/pagelens/internal/providers"
	"github.com/pagelens/pagelens/internal/similarity"
	"github.com/pagelens/pagelens/internal/split"
	"github.com/pagelens/pagelens/internal/validation"
)

// ErrNoOCRProvider is returned when no usable primary provider is
// registered for the request.
var ErrNoOCRProvider = errors.New("no OCR provider available")

// chunkWorkers caps concurrent chunk submissions to the OCR provider.
// Per-provider rate limiting still applies underneath.
const chunkWorkers = 4

// Request is one extraction run.
type Request struct {
	Document []byte
	Filename string

	// Provider selects the primary OCR provider by name. Empty picks
	// the first enabled provider from config.
	Provider string

	// Query is the section filter passed by the caller. A non-empty
	// query makes clean pages eligible for sampled validation.
	Query string

	// EnableValidation overrides the configured validation.enabled
	// flag when non-nil.
	EnableValidation *bool
}

// Section is one output unit, named after the outline section that
// produced it.
type Section struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// Result is the outcome of a pipeline run.
type Result struct {
	Sections  []Section          `json:"sections"`
	Markdown  string             `json:"markdown"`
	Report    *validation.Report `json:"validation_report,omitempty"`
	PageCount int                `json:"page_count"`
	Chunks    int                `json:"chunks"`
	Provider  string             `json:"provider"`
	OCRCost   float64            `json:"ocr_cost_usd"`
	Duration  time.Duration      `json:"duration"`
}

// Service wires the registry and live configuration into pipeline
// runs. Providers and validation settings are re-read per run so
// config hot reload takes effect without a restart.
type Service struct {
	registry  *providers.Registry
	configMgr *config.Manager
	renderer  providers.PageRenderer
	logger    *slog.Logger
}

// NewService creates the pipeline service.
func NewService(registry *providers.Registry, configMgr *config.Manager, renderer providers.PageRenderer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		configMgr: configMgr,
		renderer:  renderer,
		logger:    logger.With("component", "extract"),
	}
}

// Run executes the full pipeline for one document.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	cfg := s.configMgr.Get()

	ocr, err := s.pickOCR(cfg, req.Provider)
	if err != nil {
		return nil, err
	}

	splitter := split.New(split.Config{
		MaxPagesPerChunk: cfg.Split.MaxPagesPerChunk,
		Logger:           s.logger,
	})

	workDir, err := os.MkdirTemp("", "pagelens-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	chunks, err := splitter.Split(req.Document, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to split document: %w", err)
	}

	s.logger.Info("starting extraction",
		"filename", req.Filename,
		"provider", ocr.Name(),
		"chunks", len(chunks),
	)

	chunkPages, cost, err := s.ocrChunks(ctx, ocr, chunks)
	if err != nil {
		return nil, err
	}

	var pages []providers.PageText
	for _, cp := range chunkPages {
		pages = append(pages, cp...)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	report := s.validate(ctx, cfg, req, pages)
	if report != nil {
		pages = report.Apply(pages)
	}

	sections := buildSections(chunks, chunkPages, pages)
	var parts []string
	for _, sec := range sections {
		parts = append(parts, sec.Markdown)
	}

	res := &Result{
		Sections:  sections,
		Markdown:  split.CombineMarkdown(parts),
		Report:    report,
		PageCount: len(pages),
		Chunks:    len(chunks),
		Provider:  ocr.Name(),
		OCRCost:   cost,
		Duration:  time.Since(start),
	}

	s.logger.Info("extraction complete",
		"filename", req.Filename,
		"pages", res.PageCount,
		"sections", len(res.Sections),
		"elapsed", res.Duration,
	)
	return res, nil
}

// ValidatePages runs cross-validation over pages extracted elsewhere.
// doc may be nil when the original PDF is unavailable; secondary
// extraction then records per-page errors instead of replacements.
func (s *Service) ValidatePages(ctx context.Context, doc []byte, pages []providers.PageText, query string) *validation.Report {
	on := true
	req := Request{Document: doc, Query: query, EnableValidation: &on}
	report := s.validate(ctx, s.configMgr.Get(), req, pages)
	if report == nil {
		// Extractor unavailable; an empty report still tells the
		// caller how many pages were considered.
		report = &validation.Report{TotalPages: len(pages)}
	}
	return report
}

// pickOCR resolves the primary provider: the named one, or the first
// enabled provider in config order.
func (s *Service) pickOCR(cfg *config.Config, name string) (providers.OCRProvider, error) {
	if name != "" {
		return s.registry.GetOCR(name)
	}

	enabled := cfg.EnabledOCRProviders()
	names := make([]string, 0, len(enabled))
	for n := range enabled {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if ocr, err := s.registry.GetOCR(n); err == nil {
			return ocr, nil
		}
	}
	return nil, ErrNoOCRProvider
}

// ocrChunks runs the primary provider over every chunk concurrently.
// Page indexes are rebased to the original document. Any chunk
// failure fails the run: a document with silently missing pages is
// worse than an error.
func (s *Service) ocrChunks(ctx context.Context, ocr providers.OCRProvider, chunks []split.Chunk) ([][]providers.PageText, float64, error) {
	chunkPages := make([][]providers.PageText, len(chunks))
	chunkErrs := make([]error, len(chunks))
	costs := make([]float64, len(chunks))

	pool := jobs.NewPool(ctx, min(chunkWorkers, len(chunks)))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		pool.Submit(func(ctx context.Context) {
			doc, err := os.ReadFile(chunk.Path)
			if err != nil {
				chunkErrs[i] = fmt.Errorf("failed to read chunk %d: %w", i, err)
				return
			}
			result, err := ocr.ProcessDocument(ctx, doc)
			if err != nil {
				chunkErrs[i] = fmt.Errorf("OCR failed on chunk %d (pages %d-%d): %w",
					i, chunk.StartPage+1, chunk.StartPage+chunk.PageCount, err)
				return
			}
			pages := make([]providers.PageText, len(result.Pages))
			for j, p := range result.Pages {
				pages[j] = providers.PageText{
					Index:    p.Index + chunk.StartPage,
					Markdown: p.Markdown,
				}
			}
			chunkPages[i] = pages
			costs[i] = result.CostUSD
		})
	}
	pool.Wait()

	var cost float64
	for i, err := range chunkErrs {
		if err != nil {
			return nil, 0, err
		}
		cost += costs[i]
	}
	return chunkPages, cost, nil
}

// validate cross-validates the extracted pages when validation is on
// and a secondary extractor is registered. A missing extractor
// degrades to no validation rather than failing the run.
func (s *Service) validate(ctx context.Context, cfg *config.Config, req Request, pages []providers.PageText) *validation.Report {
	enabled := cfg.Validation.Enabled
	if req.EnableValidation != nil {
		enabled = *req.EnableValidation
	}
	if !enabled {
		return nil
	}

	ext, err := s.registry.GetExtractor(cfg.Validation.Extractor)
	if err != nil {
		s.logger.Warn("validation enabled but extractor unavailable",
			"extractor", cfg.Validation.Extractor, "error", err)
		return nil
	}

	method, err := similarity.ParseMethod(cfg.Validation.SimilarityMethod)
	if err != nil {
		s.logger.Warn("unknown similarity method, using default", "method", cfg.Validation.SimilarityMethod)
	}

	orch := validation.New(ext, validation.Options{
		Method:            method,
		Threshold:         cfg.Validation.Threshold,
		SampleRate:        cfg.Validation.SampleRate,
		SkipSampleIfClean: cfg.Validation.SkipSampleIfClean,
		EnabledProblems:   cfg.ValidationPatterns(),
		ExtractWorkers:    cfg.Validation.MaxConcurrency,
		PageTimeout:       time.Duration(cfg.Validation.PageTimeoutSeconds) * time.Second,
		Logger:            s.logger,
	})
	return orch.Validate(ctx, req.Document, pages, strings.TrimSpace(req.Query) != "")
}

// buildSections groups the final page texts back into their source
// chunks. Chunks without an outline title get positional names.
func buildSections(chunks []split.Chunk, chunkPages [][]providers.PageText, finalPages []providers.PageText) []Section {
	byIndex := make(map[int]string, len(finalPages))
	for _, p := range finalPages {
		byIndex[p.Index] = p.Markdown
	}

	sections := make([]Section, 0, len(chunks))
	for i, chunk := range chunks {
		var parts []string
		for _, p := range chunkPages[i] {
			parts = append(parts, strings.TrimSpace(byIndex[p.Index]))
		}
		title := chunk.Section
		if title == "" {
			title = fmt.Sprintf("part_%02d", i+1)
		}
		sections = append(sections, Section{
			Title:    title,
			Markdown: strings.Join(parts, "\n\n"),
		})
	}
	return sections
}

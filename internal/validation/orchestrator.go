// Package validation coordinates quality assurance over extracted
// pages: concurrent problem detection, sampled secondary-opinion
// extraction, similarity scoring, and selective content replacement.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/internal/jobs"
	"github.com/pagelens/pagelens/internal/problems"
	"github.com/pagelens/pagelens/internal/providers"
	"github.com/pagelens/pagelens/internal/similarity"
)

const (
	defaultThreshold      = 0.95
	defaultSampleRate     = 5
	defaultExtractWorkers = 8
	defaultPageTimeout    = 120 * time.Second
)

// Options configures an Orchestrator. Zero values get sensible
// defaults; the options are fixed for the lifetime of the orchestrator
// so a concurrent batch never sees configuration change mid-run.
type Options struct {
	// Method selects the full-similarity algorithm.
	Method similarity.Method

	// Threshold is the minimum similarity for a sampled page to pass.
	Threshold float64

	// SampleRate validates every Nth clean page when sampling applies.
	SampleRate int

	// SkipSampleIfClean disables sampling of pages with no detected
	// problems. Sampling exists to catch drift the detectors miss, so
	// it is an optional safety net.
	SkipSampleIfClean bool

	// EnabledProblems is the detector subset to run. Nil means all.
	EnabledProblems []problems.Pattern

	// DetectWorkers bounds the CPU-bound detection fan-out.
	// Zero means one worker per core.
	DetectWorkers int

	// ExtractWorkers bounds the I/O-bound secondary-extraction fan-out.
	ExtractWorkers int

	// PageTimeout caps one page's secondary extraction and scoring.
	PageTimeout time.Duration

	// ImagePrompts overrides the extraction prompts for pages with
	// embedded images.
	ImagePrompts *providers.PromptPair

	Logger *slog.Logger
}

// Orchestrator runs cross-validation for one document at a time. It is
// safe for concurrent use across documents.
type Orchestrator struct {
	extractor providers.PageExtractor
	calc      *similarity.Calculator

	threshold         float64
	sampleRate        int
	skipSampleIfClean bool
	enabled           []problems.Pattern
	detectWorkers     int
	extractWorkers    int
	pageTimeout       time.Duration
	imagePrompts      *providers.PromptPair

	logger *slog.Logger

	// randIntN picks the run-scoped sampling offset. Overridable in tests.
	randIntN func(n int) int
}

// New creates an orchestrator. A nil extractor is allowed: validation
// degrades to "no validation performed" instead of failing documents.
func New(extractor providers.PageExtractor, opts Options) *Orchestrator {
	if opts.Threshold == 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.ExtractWorkers <= 0 {
		opts.ExtractWorkers = defaultExtractWorkers
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.EnabledProblems == nil {
		opts.EnabledProblems = problems.All()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		extractor:         extractor,
		calc:              similarity.NewCalculator(opts.Method),
		threshold:         opts.Threshold,
		sampleRate:        opts.SampleRate,
		skipSampleIfClean: opts.SkipSampleIfClean,
		enabled:           opts.EnabledProblems,
		detectWorkers:     opts.DetectWorkers,
		extractWorkers:    opts.ExtractWorkers,
		pageTimeout:       opts.PageTimeout,
		imagePrompts:      opts.ImagePrompts,
		logger:            logger.With("component", "validation"),
		randIntN:          rand.IntN,
	}
}

// Enabled reports whether secondary-opinion validation can run.
func (o *Orchestrator) Enabled() bool {
	return o.extractor != nil
}

type workItem struct {
	page     providers.PageText
	problems []problems.Pattern
}

// Validate cross-validates all pages of a document. doc carries the
// original PDF bytes for secondary extraction; hasQuery gates sampling
// eligibility. A page-level failure never fails the run.
func (o *Orchestrator) Validate(ctx context.Context, doc []byte, pages []providers.PageText, hasQuery bool) *Report {
	report := &Report{RunID: uuid.NewString(), TotalPages: len(pages)}
	if o.extractor == nil {
		o.logger.Warn("secondary extractor not configured, skipping validation")
		return report
	}
	if len(pages) == 0 {
		return report
	}

	start := time.Now()
	offset := o.randIntN(o.sampleRate)
	o.logger.Info("starting cross-validation",
		"run_id", report.RunID,
		"pages", len(pages),
		"extractor", o.extractor.Name(),
		"sample_offset", offset,
	)

	// Phase 1: problem detection across all pages.
	type detection struct {
		hasProblem bool
		patterns   []problems.Pattern
	}
	detections := make([]detection, len(pages))

	detectPool := jobs.NewPool(ctx, o.detectWorkers)
	for i, page := range pages {
		i, page := i, page
		detectPool.Submit(func(context.Context) {
			has, patterns := problems.HasAny(page.Markdown, o.enabled)
			detections[i] = detection{hasProblem: has, patterns: patterns}
		})
	}
	detectPool.Wait()

	// Build the worklist: problem pages always, clean pages only on the
	// sampling cadence when sampling applies.
	var worklist []workItem
	for i, page := range pages {
		det := detections[i]
		switch {
		case det.hasProblem:
			o.logger.Info("problems found", "page", page.Index, "patterns", det.patterns)
			worklist = append(worklist, workItem{page: page, problems: det.patterns})
		case o.shouldSample(page.Index, hasQuery, offset):
			worklist = append(worklist, workItem{page: page})
		}
	}

	if len(worklist) == 0 {
		report.finalize(start)
		return report
	}

	// Phase 2: secondary extraction and scoring over the worklist.
	o.logger.Info("validating pages", "count", len(worklist))
	results := make([]Result, len(worklist))

	extractPool := jobs.NewPool(ctx, o.extractWorkers)
	for i, item := range worklist {
		i, item := i, item
		extractPool.Submit(func(ctx context.Context) {
			results[i] = o.validatePage(ctx, doc, item)
		})
	}
	extractPool.Wait()

	report.Results = results
	report.finalize(start)

	o.logger.Info("cross-validation complete",
		"total_pages", report.TotalPages,
		"validated", report.ValidatedPages,
		"problem_pages", len(report.ProblemPages),
		"failed", len(report.FailedValidations),
		"status", report.Status(),
		"cost_usd", report.EstimatedCost,
		"duration", report.TotalTime,
	)
	return report
}

// shouldSample reports whether a clean page lands on the sampling
// cadence for this run.
func (o *Orchestrator) shouldSample(pageIndex int, hasQuery bool, offset int) bool {
	if o.skipSampleIfClean || !hasQuery {
		return false
	}
	return pageIndex%o.sampleRate == offset
}

// validatePage runs secondary extraction and scoring for one page. Any
// failure, including a panic in scoring, is recorded on the result and
// never aborts the batch.
func (o *Orchestrator) validatePage(ctx context.Context, doc []byte, item workItem) (res Result) {
	start := time.Now()
	res = Result{
		PageNumber: item.page.Index,
		HadProblem: len(item.problems) > 0,
		Problems:   item.problems,
	}
	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.SimilarityScore = 0
			res.Error = fmt.Sprintf("validation panic: %v", r)
		}
		res.ProcessingTime = time.Since(start)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.pageTimeout)
	defer cancel()

	var prompts *providers.PromptPair
	if hasPattern(item.problems, problems.MarkdownImages) {
		prompts = o.imagePrompts
	}

	alt, err := o.extractor.ExtractPage(ctx, doc, item.page.Index, prompts)
	if err != nil {
		o.logger.Error("secondary extraction failed", "page", item.page.Index, "error", err)
		res.Error = err.Error()
		return res
	}

	if res.HadProblem {
		// Corruption is already established, replace without comparing.
		res.SimilarityScore = 0
		res.Passed = false
		res.ReplacementText = alt
		res.Replaced = true
		o.logger.Info("replacing problematic page", "page", item.page.Index, "patterns", item.problems)
		return res
	}

	score := o.calc.Score(item.page.Markdown, alt)
	res.SimilarityScore = score
	res.Passed = score >= o.threshold
	if !res.Passed {
		res.ReplacementText = alt
		res.Replaced = true
	}
	o.logger.Info("sample validation",
		"page", item.page.Index,
		"similarity", score,
		"threshold", o.threshold,
		"passed", res.Passed,
	)
	return res
}

func hasPattern(patterns []problems.Pattern, want problems.Pattern) bool {
	for _, p := range patterns {
		if p == want {
			return true
		}
	}
	return false
}

// Package providers holds the wire clients for the external extraction
// services: the primary OCR provider, the secondary-opinion page
// extractor used by cross-validation, and the structured table source.
package providers

import (
	"context"
	"time"

	"github.com/pagelens/pagelens/internal/tables"
)

// PageText is one page of primary extraction output.
type PageText struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// OCRResult is the response from the primary OCR provider.
type OCRResult struct {
	Pages         []PageText    `json:"pages"`
	Model         string        `json:"model"`
	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// OCRProvider extracts every page of a document in one call.
type OCRProvider interface {
	// Name returns the provider identifier (e.g. "mistral-ocr").
	Name() string

	// ProcessDocument extracts markdown text for all pages of a PDF.
	ProcessDocument(ctx context.Context, pdf []byte) (*OCRResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// PromptPair overrides the extraction prompts for pages that need
// special handling (embedded charts, figures).
type PromptPair struct {
	System string
	User   string
}

// PageExtractor produces a second opinion for a single page. The
// validation orchestrator calls it concurrently, so implementations
// must be safe for concurrent use. Retry and backoff against the
// provider API belong here, not in the orchestrator.
type PageExtractor interface {
	// Name returns the extractor identifier (e.g. "openai").
	Name() string

	// ExtractPage re-extracts one page of the document. pageNumber is
	// zero-based. prompts may be nil for the default extraction prompts.
	ExtractPage(ctx context.Context, doc []byte, pageNumber int, prompts *PromptPair) (string, error)
}

// FragmentSource is a structured table-extraction provider.
type FragmentSource interface {
	// Name returns the source identifier (e.g. "azure-di").
	Name() string

	// AnalyzeTables extracts table fragments, each tagged with its page.
	AnalyzeTables(ctx context.Context, doc []byte) ([]tables.Fragment, error)
}

// PageRenderer turns one page of a PDF into an image for vision-based
// extraction. How a page is rendered is the caller's policy, not the
// extractor's.
type PageRenderer func(ctx context.Context, doc []byte, pageNumber int) ([]byte, error)

package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagelens/pagelens/internal/tables"
)

// MockExtractor is a PageExtractor for tests. Pages maps zero-based
// page numbers to the text the extractor returns; missing pages yield
// an error unless Fallback is set.
type MockExtractor struct {
	Pages    map[int]string
	Fallback string
	Err      error
	Delay    time.Duration

	mu    sync.Mutex
	calls []int
}

func (m *MockExtractor) Name() string { return "mock" }

func (m *MockExtractor) ExtractPage(ctx context.Context, doc []byte, pageNumber int, prompts *PromptPair) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, pageNumber)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if text, ok := m.Pages[pageNumber]; ok {
		return text, nil
	}
	if m.Fallback != "" {
		return m.Fallback, nil
	}
	return "", fmt.Errorf("mock: no text for page %d", pageNumber)
}

// Calls returns the page numbers extracted so far, in call order.
func (m *MockExtractor) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockOCR is an OCRProvider for tests.
type MockOCR struct {
	Result *OCRResult
	Err    error
}

func (m *MockOCR) Name() string                  { return "mock-ocr" }
func (m *MockOCR) RequestsPerSecond() float64    { return 100 }
func (m *MockOCR) MaxRetries() int               { return 1 }
func (m *MockOCR) RetryDelayBase() time.Duration { return time.Millisecond }

func (m *MockOCR) ProcessDocument(ctx context.Context, doc []byte) (*OCRResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// MockFragmentSource is a FragmentSource for tests.
type MockFragmentSource struct {
	Fragments []tables.Fragment
	Err       error
}

func (m *MockFragmentSource) Name() string { return "mock-tables" }

func (m *MockFragmentSource) AnalyzeTables(ctx context.Context, doc []byte) ([]tables.Fragment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Fragments, nil
}

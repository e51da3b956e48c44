package validation

import (
	"sort"
	"time"

	"github.com/pagelens/pagelens/internal/problems"
	"github.com/pagelens/pagelens/internal/providers"
)

// Cost estimation (approximate).
const (
	validatorCostPer1KTokens = 0.01
	avgTokensPerPage         = 500
)

// Result records the outcome of validating one page.
//
// When HadProblem is true the page is replaced unconditionally and
// SimilarityScore is 0; no comparison is meaningful against content
// already known to be bad. When HadProblem is false, Replaced is set
// only if the similarity check failed.
type Result struct {
	PageNumber      int                `json:"page_number"`
	SimilarityScore float64            `json:"similarity_score"`
	Passed          bool               `json:"passed"`
	HadProblem      bool               `json:"had_problem"`
	Problems        []problems.Pattern `json:"problems,omitempty"`
	ReplacementText string             `json:"replacement_text,omitempty"`
	Replaced        bool               `json:"replaced"`
	ProcessingTime  time.Duration      `json:"processing_time"`
	Error           string             `json:"error,omitempty"`
}

// Report aggregates the validation run over one document.
type Report struct {
	RunID             string        `json:"run_id,omitempty"`
	TotalPages        int           `json:"total_pages"`
	ValidatedPages    int           `json:"validated_pages"`
	ProblemPages      []int         `json:"problem_pages,omitempty"`
	FailedValidations []int         `json:"failed_validations,omitempty"`
	Results           []Result      `json:"results,omitempty"`
	TotalTime         time.Duration `json:"total_time"`
	EstimatedCost     float64       `json:"estimated_cost"`
}

// Status is the caller-visible classification of a validation run.
type Status string

const (
	StatusPassed        Status = "passed"
	StatusProblemsFixed Status = "problems_fixed"
	StatusWarnings      Status = "warnings"
)

// StatusReport is the simplified view embedded in API responses.
type StatusReport struct {
	Enabled bool   `json:"enabled"`
	Status  Status `json:"status"`
}

// Status classifies the run: problems fixed beats warnings, and a run
// that validated nothing passes by omission.
func (r *Report) Status() Status {
	if len(r.ProblemPages) > 0 {
		return StatusProblemsFixed
	}
	if len(r.FailedValidations) > 0 {
		return StatusWarnings
	}
	return StatusPassed
}

// StatusReport returns the simplified status triple.
func (r *Report) StatusReport() StatusReport {
	return StatusReport{Enabled: true, Status: r.Status()}
}

// Apply returns a copy of pages with every replacement text patched in.
// The input slice is not mutated.
func (r *Report) Apply(pages []providers.PageText) []providers.PageText {
	out := make([]providers.PageText, len(pages))
	copy(out, pages)

	byIndex := make(map[int]int, len(out))
	for i, p := range out {
		byIndex[p.Index] = i
	}
	for _, res := range r.Results {
		if !res.Replaced {
			continue
		}
		if i, ok := byIndex[res.PageNumber]; ok {
			out[i].Markdown = res.ReplacementText
		}
	}
	return out
}

// finalize sorts results into page order and fills the aggregates.
func (r *Report) finalize(start time.Time) {
	sort.Slice(r.Results, func(i, j int) bool {
		return r.Results[i].PageNumber < r.Results[j].PageNumber
	})
	r.ProblemPages = r.ProblemPages[:0]
	r.FailedValidations = r.FailedValidations[:0]
	for _, res := range r.Results {
		if res.HadProblem {
			r.ProblemPages = append(r.ProblemPages, res.PageNumber)
		}
		if !res.Passed {
			r.FailedValidations = append(r.FailedValidations, res.PageNumber)
		}
	}
	r.ValidatedPages = len(r.Results)
	r.EstimatedCost = float64(r.ValidatedPages) * avgTokensPerPage * validatorCostPer1KTokens / 1000
	r.TotalTime = time.Since(start)
}

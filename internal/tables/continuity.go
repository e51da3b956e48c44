package tables

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/pagelens/pagelens/internal/normalize"
)

const (
	// DefaultBalanceTolerance absorbs rounding differences when two
	// rows report the same running balance.
	DefaultBalanceTolerance = 0.01

	// defaultMaxSwingRatio is the tuned cutoff for a plausible single
	// transaction: a running balance should not move by half in one
	// step. Inherited heuristic, overridable, not exact domain law.
	defaultMaxSwingRatio = 0.5

	// defaultMaxStartBalance bounds the balance accepted when the
	// previous row closed at exactly zero.
	defaultMaxStartBalance = 1_000_000
)

// ContinuityValidator judges whether two adjacent table fragments hold
// one numerically continuous ledger despite structural mismatch. OCR
// column misalignment can change cell content without destroying the
// page's logical continuity, so the decision degrades from balance
// semantics to structural alignment evidence.
type ContinuityValidator struct {
	Tolerance       float64
	MaxSwingRatio   float64
	MaxStartBalance float64
	Logger          *slog.Logger
}

// NewContinuityValidator returns a validator with the given tolerance
// and default swing/start bounds.
func NewContinuityValidator(tolerance float64) *ContinuityValidator {
	if tolerance <= 0 {
		tolerance = DefaultBalanceTolerance
	}
	return &ContinuityValidator{
		Tolerance:       tolerance,
		MaxSwingRatio:   defaultMaxSwingRatio,
		MaxStartBalance: defaultMaxStartBalance,
	}
}

// rowNumbers holds the numeric reading of one table row.
type rowNumbers struct {
	amounts   []float64
	positions map[int]struct{} // column indices holding numbers
}

// balance is the last number in the row, conventionally the running
// balance column of a ledger.
func (r rowNumbers) balance() (float64, bool) {
	if len(r.amounts) == 0 {
		return 0, false
	}
	return r.amounts[len(r.amounts)-1], true
}

// Continuous reports whether prevRow (last row of the preceding
// fragment) and currRow (first row of the following fragment) read as
// one continuous ledger.
func (v *ContinuityValidator) Continuous(prevRow, currRow []string) bool {
	log := v.Logger
	if log == nil {
		log = slog.Default()
	}

	prev := extractRowNumbers(prevRow)
	curr := extractRowNumbers(currRow)

	prevBalance, prevOK := prev.balance()
	currBalance, currOK := curr.balance()
	if !prevOK || !currOK {
		log.Debug("continuity: no numbers in boundary rows")
		return false
	}

	diff := math.Abs(currBalance - prevBalance)
	if diff <= v.Tolerance {
		log.Debug("continuity: same balance", "balance", currBalance)
		return true
	}

	if prevBalance != 0 {
		swing := diff / math.Abs(prevBalance)
		if swing < v.MaxSwingRatio {
			log.Debug("continuity: plausible balance change",
				"prev", prevBalance, "curr", currBalance, "swing", swing)
			return true
		}
		log.Debug("continuity: balance change too large",
			"prev", prevBalance, "curr", currBalance, "swing", swing)
	} else if math.Abs(currBalance) < v.MaxStartBalance {
		log.Debug("continuity: starting from zero balance", "curr", currBalance)
		return true
	}

	// Fallback: structural alignment. Enough numeric-bearing columns in
	// the same positions is evidence of one table even when balance
	// semantics are inconclusive.
	if len(prev.positions) > 0 && len(curr.positions) > 0 {
		overlap := 0
		for idx := range prev.positions {
			if _, ok := curr.positions[idx]; ok {
				overlap++
			}
		}
		total := max(len(prev.positions), len(curr.positions))
		if float64(overlap)/float64(total) >= 0.5 {
			log.Debug("continuity: column positions align", "overlap", overlap, "total", total)
			return true
		}
	}

	log.Debug("continuity: no criteria met")
	return false
}

// extractRowNumbers pulls every numeric token out of a row, remembering
// which columns held numbers.
func extractRowNumbers(row []string) rowNumbers {
	r := rowNumbers{positions: make(map[int]struct{})}
	for idx, cell := range row {
		if cell == "" {
			continue
		}
		for _, num := range normalize.ExtractNumbers(cell) {
			value, err := strconv.ParseFloat(num, 64)
			if err != nil {
				continue
			}
			r.amounts = append(r.amounts, value)
			r.positions[idx] = struct{}{}
		}
	}
	return r
}

package tables

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// MergedTable is a logical table assembled from one or more fragments
// spanning one or more pages.
type MergedTable struct {
	Headers   []string
	StartPage int
	EndPage   int

	rows [][]string
}

// NewMergedTable starts a logical table from the first fragment seen on
// a page.
func NewMergedTable(headers []string, pageNumber int) *MergedTable {
	return &MergedTable{
		Headers:   headers,
		StartPage: pageNumber,
		EndPage:   pageNumber,
	}
}

// AddRows appends data rows from a continuation fragment. EndPage only
// ever moves forward because fragments fold in page order.
func (m *MergedTable) AddRows(rows [][]string, pageNumber int) {
	m.rows = append(m.rows, rows...)
	if pageNumber > m.EndPage {
		m.EndPage = pageNumber
	}
}

// Rows returns the accumulated data rows.
func (m *MergedTable) Rows() [][]string {
	return m.rows
}

// RowCount returns the number of accumulated data rows.
func (m *MergedTable) RowCount() int {
	return len(m.rows)
}

// Markdown renders the merged table: a page-range line, a header row
// padded to the widest row observed (short headers get synthesized
// column names), a separator, then data rows padded or truncated to
// that width.
func (m *MergedTable) Markdown() string {
	if len(m.Headers) == 0 && len(m.rows) == 0 {
		return ""
	}

	maxCols := len(m.Headers)
	for _, row := range m.rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}

	headers := make([]string, len(m.Headers), maxCols)
	copy(headers, m.Headers)
	for len(headers) < maxCols {
		headers = append(headers, fmt.Sprintf("Col%d", len(headers)+1))
	}

	var b strings.Builder
	if m.StartPage == m.EndPage {
		fmt.Fprintf(&b, "**Table from Page %d**\n\n", m.StartPage)
	} else {
		fmt.Fprintf(&b, "**Table from Pages %d-%d**\n\n", m.StartPage, m.EndPage)
	}

	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")

	separators := make([]string, maxCols)
	for i := range separators {
		separators[i] = "---"
	}
	b.WriteString("| " + strings.Join(separators, " | ") + " |\n")

	for _, row := range m.rows {
		padded := make([]string, maxCols)
		copy(padded, row)
		b.WriteString("| " + strings.Join(padded, " | ") + " |\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Merger stitches table fragments across consecutive pages into logical
// tables. Merging is inherently order-dependent, so it runs
// sequentially over pages in ascending order.
type Merger struct {
	validator     *ContinuityValidator
	useContinuity bool
	logger        *slog.Logger
}

// MergerConfig configures a Merger.
type MergerConfig struct {
	// BalanceTolerance for the continuity validator.
	BalanceTolerance float64
	// UseContinuity enables numeric-continuity merging of fragments
	// whose headers mismatch.
	UseContinuity bool
	Logger        *slog.Logger
}

// NewMerger creates a Merger.
func NewMerger(cfg MergerConfig) *Merger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := NewContinuityValidator(cfg.BalanceTolerance)
	v.Logger = logger
	return &Merger{
		validator:     v,
		useContinuity: cfg.UseContinuity,
		logger:        logger.With("component", "table-merger"),
	}
}

// GroupByPage buckets fragments by their source page.
func GroupByPage(fragments []Fragment) map[int][]Fragment {
	byPage := make(map[int][]Fragment)
	for _, f := range fragments {
		byPage[f.PageNumber] = append(byPage[f.PageNumber], f)
	}
	return byPage
}

// Merge folds fragments, in ascending page order, into logical tables.
// Rules tried in order: start a table when none is running; append on
// equal headers; append a headerless fragment wholesale (its first row
// is data); append on numeric continuity despite a header mismatch;
// otherwise finalize and start fresh.
func (mg *Merger) Merge(fragments []Fragment) []*MergedTable {
	byPage := GroupByPage(fragments)

	pageNums := make([]int, 0, len(byPage))
	for p := range byPage {
		pageNums = append(pageNums, p)
	}
	sort.Ints(pageNums)

	var merged []*MergedTable
	var current *MergedTable

	for _, pageNum := range pageNums {
		for i := range byPage[pageNum] {
			frag := &byPage[pageNum][i]
			headers := frag.Headers()
			data := frag.DataRows()

			if len(headers) == 0 && len(data) == 0 {
				// Zero-row fragment contributes nothing.
				continue
			}

			if current == nil {
				current = NewMergedTable(headers, pageNum)
				current.AddRows(data, pageNum)
				continue
			}

			if len(headers) > 0 && headersMatch(current.Headers, headers) {
				mg.logger.Debug("merging fragment: headers match", "page", pageNum)
				current.AddRows(data, pageNum)
				continue
			}

			if !frag.HasHeaders() {
				// Continuation without header repetition: the pseudo-header
				// row is really data.
				mg.logger.Debug("merging fragment: headerless continuation", "page", pageNum)
				rows := data
				if len(headers) > 0 {
					rows = append([][]string{headers}, data...)
				}
				current.AddRows(rows, pageNum)
				continue
			}

			if mg.useContinuity && current.RowCount() > 0 && len(data) > 0 {
				prevLast := current.rows[current.RowCount()-1]
				if mg.validator.Continuous(prevLast, data[0]) {
					mg.logger.Debug("merging fragment: numeric continuity despite header mismatch",
						"page", pageNum)
					current.AddRows(data, pageNum)
					continue
				}
			}

			merged = append(merged, current)
			current = NewMergedTable(headers, pageNum)
			current.AddRows(data, pageNum)
		}
	}

	if current != nil {
		merged = append(merged, current)
	}

	mg.logger.Info("table merge complete",
		"fragments", len(fragments), "tables", len(merged))
	return merged
}

// headersMatch compares header lists case- and whitespace-insensitively.
func headersMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

// Package tables reassembles provider-reported table fragments into
// logical tables spanning page boundaries.
package tables

import (
	"sort"
	"strings"
)

// Cell is one cell of a provider-reported table.
type Cell struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	RowSpan  int    `json:"row_span,omitempty"`
	ColSpan  int    `json:"col_span,omitempty"`
	Content  string `json:"content"`
	IsHeader bool   `json:"is_header,omitempty"`
}

// Fragment is a single table as reported by the structured-extraction
// provider, tagged with its source page.
type Fragment struct {
	RowCount   int    `json:"row_count"`
	ColCount   int    `json:"col_count"`
	Cells      []Cell `json:"cells"`
	PageNumber int    `json:"page_number"`
}

// HasHeaders reports whether the provider tagged any cell as a header.
func (f *Fragment) HasHeaders() bool {
	for _, c := range f.Cells {
		if c.IsHeader {
			return true
		}
	}
	return false
}

// Headers returns the header row: tagged header cells when present,
// otherwise the first row. Empty for an empty fragment.
func (f *Fragment) Headers() []string {
	var cells []Cell
	for _, c := range f.Cells {
		if c.IsHeader {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		for _, c := range f.Cells {
			if c.Row == 0 {
				cells = append(cells, c)
			}
		}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Col < cells[j].Col })

	headers := make([]string, 0, len(cells))
	for _, c := range cells {
		headers = append(headers, strings.TrimSpace(c.Content))
	}
	return headers
}

// DataRows returns the fragment's rows excluding the header row. When
// no cell is tagged as a header, the first row is still treated as the
// pseudo-header here; the merger decides whether it is really data.
func (f *Fragment) DataRows() [][]string {
	startRow := 1
	byRow := make(map[int][]Cell)
	for _, c := range f.Cells {
		byRow[c.Row] = append(byRow[c.Row], c)
	}

	var rows [][]string
	for rowIdx := startRow; rowIdx < f.RowCount; rowIdx++ {
		cells := byRow[rowIdx]
		if len(cells) == 0 {
			continue
		}
		sort.Slice(cells, func(i, j int) bool { return cells[i].Col < cells[j].Col })
		row := make([]string, 0, len(cells))
		for _, c := range cells {
			row = append(row, strings.TrimSpace(c.Content))
		}
		rows = append(rows, row)
	}
	return rows
}

// Package problems detects quality defects in machine-extracted page text.
//
// Each pattern is an independent pure heuristic over one page's markdown.
// The enabled subset is chosen by configuration; disabled patterns are
// never evaluated, which matters because detection runs once per page
// across potentially hundreds of pages.
package problems

// Pattern names one heuristic check signaling likely extraction
// degradation on a page.
type Pattern string

const (
	// EmptyTables fires on 5+ consecutive mostly-empty table rows.
	EmptyTables Pattern = "empty_tables"
	// LowContentDensity fires under 100 alphanumeric characters.
	LowContentDensity Pattern = "low_content_density"
	// MissingNumbers fires when a table of 5+ rows yields no numbers.
	MissingNumbers Pattern = "missing_numbers"
	// InconsistentColumns fires when table rows disagree on column count.
	InconsistentColumns Pattern = "inconsistent_columns"
	// RepeatedCharacters fires on runs of 10+ of one non-decorative char.
	RepeatedCharacters Pattern = "repeated_characters"
	// GarbledText fires when special characters exceed 20% of alphanumerics.
	GarbledText Pattern = "garbled_text"
	// HeaderOnlyTables fires on a table with a header but at most one data row.
	HeaderOnlyTables Pattern = "header_only_tables"
	// VeryShortPages fires under 200 characters of content.
	VeryShortPages Pattern = "very_short_pages"
	// MissingKeywords fires on substantial pages with no financial terms.
	MissingKeywords Pattern = "missing_keywords"
	// MalformedStructure fires on table separators with invalid characters.
	MalformedStructure Pattern = "malformed_structure"
	// DuplicateContent fires when a substantial paragraph repeats 3+ times.
	DuplicateContent Pattern = "duplicate_content"
	// UnknownCharacters fires on a high ratio of replacement glyphs.
	UnknownCharacters Pattern = "unknown_characters"
	// RepetitiveNumbers fires when one number repeats 3+ times in proximity.
	RepetitiveNumbers Pattern = "repetitive_numbers"
	// MarkdownImages fires on embedded image references.
	MarkdownImages Pattern = "markdown_images"
	// EmptyContent is reported for pages with no text at all.
	EmptyContent Pattern = "empty_content"
)

// All lists every registered pattern in a stable order. EmptyContent is
// excluded: it is synthesized for blank pages, not a registry entry.
func All() []Pattern {
	return []Pattern{
		EmptyTables,
		LowContentDensity,
		MissingNumbers,
		InconsistentColumns,
		RepeatedCharacters,
		GarbledText,
		HeaderOnlyTables,
		VeryShortPages,
		MissingKeywords,
		MalformedStructure,
		DuplicateContent,
		UnknownCharacters,
		RepetitiveNumbers,
		MarkdownImages,
	}
}

// Valid reports whether p names a registered pattern.
func Valid(p Pattern) bool {
	_, ok := registry[p]
	return ok
}

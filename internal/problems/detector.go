package problems

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pagelens/pagelens/internal/normalize"
)

const (
	minAlphanumericChars = 100
	minPageChars         = 200
	keywordCheckMinChars = 500
	minTableRowsForNums  = 5
	repeatRunLength      = 10
	specialCharMaxRatio  = 0.2
	unknownCharMaxRatio  = 0.05
	duplicateMinParaLen  = 50
	duplicateMinRepeats  = 3
)

// detectorFunc is a pure check over one page's markdown.
type detectorFunc func(content string) bool

// registry maps every pattern to its detector. Keeping the table
// explicit means an unregistered Pattern constant is caught by
// TestRegistryExhaustive rather than silently never firing.
var registry = map[Pattern]detectorFunc{
	EmptyTables:         detectEmptyTables,
	LowContentDensity:   detectLowContentDensity,
	MissingNumbers:      detectMissingNumbers,
	InconsistentColumns: detectInconsistentColumns,
	RepeatedCharacters:  detectRepeatedCharacters,
	GarbledText:         detectGarbledText,
	HeaderOnlyTables:    detectHeaderOnlyTables,
	VeryShortPages:      detectVeryShortPages,
	MissingKeywords:     detectMissingKeywords,
	MalformedStructure:  detectMalformedStructure,
	DuplicateContent:    detectDuplicateContent,
	UnknownCharacters:   detectUnknownCharacters,
	RepetitiveNumbers:   detectRepetitiveNumbers,
	MarkdownImages:      detectMarkdownImages,
}

// Detect runs the enabled patterns against content and returns the
// per-pattern results. Disabled patterns are skipped entirely, not run
// and discarded.
func Detect(content string, enabled []Pattern) map[Pattern]bool {
	results := make(map[Pattern]bool, len(enabled))
	for _, p := range enabled {
		fn, ok := registry[p]
		if !ok {
			results[p] = false
			continue
		}
		results[p] = fn(content)
	}
	return results
}

// HasAny reports whether content triggers any enabled pattern, and which
// ones. Empty content always reports a problem. Detected patterns come
// back in registry order so callers get deterministic output.
func HasAny(content string, enabled []Pattern) (bool, []Pattern) {
	if content == "" {
		return true, []Pattern{EmptyContent}
	}

	results := Detect(content, enabled)

	var detected []Pattern
	for _, p := range All() {
		if results[p] {
			detected = append(detected, p)
		}
	}
	return len(detected) > 0, detected
}

// emptyTableRe matches 5+ consecutive table rows with mostly empty cells.
var emptyTableRe = regexp.MustCompile(`(\|\s*\|\s*\|.*\n){5,}`)

func detectEmptyTables(content string) bool {
	return emptyTableRe.MatchString(content)
}

func detectLowContentDensity(content string) bool {
	count := 0
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			count++
			if count >= minAlphanumericChars {
				return false
			}
		}
	}
	return true
}

func detectMissingNumbers(content string) bool {
	// Rough row estimate from pipe density; exact structure is not needed
	// to decide "there is a table here".
	tableRows := strings.Count(content, "|") / 4
	if tableRows < minTableRowsForNums {
		return false
	}
	return len(normalize.ExtractNumbers(content)) == 0
}

func detectInconsistentColumns(content string) bool {
	lines := tableLines(content)
	if len(lines) < 3 {
		// Need at least header, separator, and one data row.
		return false
	}

	distinct := make(map[int]struct{})
	for _, line := range lines {
		distinct[strings.Count(line, "|")-1] = struct{}{}
	}
	// One extra count is allowed for the header separator row.
	return len(distinct) > 2
}

// decorativeRunes are legitimately repeated in markdown (rules,
// separators, emphasis) and never count as OCR artifacts.
var decorativeRunes = map[rune]struct{}{
	' ': {}, '-': {}, '_': {}, '=': {}, '*': {}, '\n': {},
}

func detectRepeatedCharacters(content string) bool {
	var prev rune
	run := 0
	for _, r := range content {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= repeatRunLength {
			if _, decorative := decorativeRunes[r]; !decorative {
				return true
			}
		}
	}
	return false
}

// commonPunctuation is excluded from the special-character count.
const commonPunctuation = " \n\t.,;:!?-()[]{}\"'/\\|"

func detectGarbledText(content string) bool {
	alphanumeric, special := 0, 0
	for _, r := range content {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alphanumeric++
		case !strings.ContainsRune(commonPunctuation, r):
			special++
		}
	}
	if alphanumeric == 0 {
		return true
	}
	return float64(special)/float64(alphanumeric) > specialCharMaxRatio
}

func detectHeaderOnlyTables(content string) bool {
	lines := tableLines(content)
	if len(lines) < 2 {
		return false
	}

	sepIdx := -1
	for i, line := range lines {
		if strings.Contains(line, "---") {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		return false
	}
	return len(lines)-sepIdx-1 <= 1
}

func detectVeryShortPages(content string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(content)) < minPageChars
}

// financialKeywords covers English and Hebrew terms expected on
// substantial pages of financial documents.
var financialKeywords = []string{
	"revenue", "expense", "balance", "asset", "liability", "equity",
	"income", "profit", "loss", "debit", "credit", "account",
	"total", "subtotal", "amount", "date", "transaction", "payment",
	"statement", "bank", "financial", "report", "summary",
	"הכנסות", "הוצאות", "יתרה", "חשבון", "סכום",
	"סה\"כ", "זכות", "חובה", "תאריך", "עסקה",
	"תשלום", "דוח", "כספי", "מאזן", "רווח", "הפסד",
}

func detectMissingKeywords(content string) bool {
	if utf8.RuneCountInString(content) < keywordCheckMinChars {
		// Short pages legitimately lack keywords.
		return false
	}
	lower := strings.ToLower(content)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

func detectMalformedStructure(content string) bool {
	lines := tableLines(content)
	if len(lines) < 2 {
		return false
	}

	for _, line := range lines {
		if !strings.Contains(line, "-") {
			continue
		}
		valid, total := 0, 0
		for _, part := range strings.Split(line, "|") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			total++
			if strings.Trim(part, "- ") == "" {
				valid++
			}
		}
		if total > 0 && float64(valid)/float64(total) < 0.7 {
			return true
		}
	}
	return false
}

func detectDuplicateContent(content string) bool {
	paragraphs := strings.Split(content, "\n\n")
	counts := make(map[string]int)
	seen := 0
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		seen++
		counts[p]++
	}
	if seen < duplicateMinRepeats {
		return false
	}
	for para, count := range counts {
		if count >= duplicateMinRepeats && utf8.RuneCountInString(para) > duplicateMinParaLen {
			return true
		}
	}
	return false
}

// unknownGlyphs are characters OCR engines emit for unrecognized input.
var unknownGlyphs = []string{"□", "�", "☐", "▯", "▢", "▣"}

var standaloneQuestionRe = regexp.MustCompile(`\s\?\s`)

func detectUnknownCharacters(content string) bool {
	total := utf8.RuneCountInString(content)
	if total == 0 {
		return false
	}
	unknown := 0
	for _, g := range unknownGlyphs {
		unknown += strings.Count(content, g)
	}
	unknown += len(standaloneQuestionRe.FindAllString(content, -1))
	return float64(unknown)/float64(total) > unknownCharMaxRatio
}

var numericTokenRe = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)

func detectRepetitiveNumbers(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "|") {
			if hasRepeatedNumericRun(splitCells(line)) {
				return true
			}
			continue
		}
		if hasRepeatedNumericRun(strings.Fields(line)) {
			return true
		}
	}
	return false
}

// hasRepeatedNumericRun reports whether three or more consecutive tokens
// are the same numeric value.
func hasRepeatedNumericRun(tokens []string) bool {
	run := 0
	prev := ""
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || !numericTokenRe.MatchString(tok) {
			run = 0
			prev = ""
			continue
		}
		if tok == prev {
			run++
		} else {
			prev = tok
			run = 1
		}
		if run >= 3 {
			return true
		}
	}
	return false
}

var markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)

func detectMarkdownImages(content string) bool {
	return markdownImageRe.MatchString(content)
}

// tableLines returns the trimmed lines that look like table rows.
func tableLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "|") {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitCells breaks a pipe-delimited row into its interior cells.
func splitCells(line string) []string {
	line = strings.Trim(strings.TrimSpace(line), "|")
	return strings.Split(line, "|")
}

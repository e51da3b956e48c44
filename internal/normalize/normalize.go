// Package normalize reduces extracted page text to comparable forms.
//
// Two extractions of the same page can disagree wildly on layout (plain
// prose vs a pipe-delimited table) while carrying identical content, so
// comparisons run on normalized text or on the canonical numbers it
// contains rather than on the raw markdown.
package normalize

import (
	"strings"
	"unicode"
)

// ForComparison keeps only Unicode letters and digits, lower-cased.
// Formatting, punctuation, and whitespace differences between two
// renderings of the same content disappear; a string with no
// alphanumeric content normalizes to "".
func ForComparison(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

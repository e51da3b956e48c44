// Package similarity scores how close two extractions of the same page are.
//
// A cheap Jaccard pre-filter handles the common case where both
// extractions are near-identical; everything else goes through one of
// two full algorithms selected by configuration.
package similarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/pagelens/pagelens/internal/normalize"
)

// Method selects the full-similarity algorithm.
type Method string

const (
	// MethodNumberFrequency compares the multisets of numbers in both
	// texts via cosine similarity. Layout and language are ignored
	// entirely, which suits tabular financial content where two
	// extractions legitimately render the same page differently.
	MethodNumberFrequency Method = "number_frequency"

	// MethodLevenshtein compares normalized (alphanumeric-only) text by
	// character-level edit distance.
	MethodLevenshtein Method = "levenshtein"
)

// quickExitThreshold is the pre-filter score above which the full
// algorithm is skipped.
const quickExitThreshold = 0.95

// Calculator scores text similarity with a configured full method.
type Calculator struct {
	method Method
}

// NewCalculator returns a Calculator using the given method.
// An unknown method falls back to number frequency.
func NewCalculator(method Method) *Calculator {
	if method != MethodNumberFrequency && method != MethodLevenshtein {
		method = MethodNumberFrequency
	}
	return &Calculator{method: method}
}

// Score returns the similarity of a and b in [0,1]. The quick estimate
// short-circuits obviously near-identical content; otherwise the
// configured full algorithm runs.
func (c *Calculator) Score(a, b string) float64 {
	if quick := QuickEstimate(a, b); quick > quickExitThreshold {
		return quick
	}
	return Full(a, b, c.method)
}

// Method returns the configured full-similarity method.
func (c *Calculator) Method() Method {
	return c.method
}

// QuickEstimate is a cheap pre-filter: a length-ratio gate followed by
// Jaccard similarity over whitespace-tokenized word sets. Texts whose
// lengths differ by more than 5% score 0 without tokenizing.
func QuickEstimate(a, b string) float64 {
	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		return 0
	}
	if math.Abs(float64(lenA-lenB))/float64(max(lenA, lenB)) > 0.05 {
		return 0
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Full computes similarity with the given method, without the
// pre-filter.
func Full(a, b string, method Method) float64 {
	switch method {
	case MethodLevenshtein:
		return levenshteinSimilarity(a, b)
	default:
		return numberFrequencySimilarity(a, b)
	}
}

// numberFrequencySimilarity builds number-frequency vectors for both
// texts and returns their cosine similarity. Both empty is 1 (nothing
// disagrees); exactly one empty is 0.
func numberFrequencySimilarity(a, b string) float64 {
	freqA := frequency(normalize.ExtractNumbers(a))
	freqB := frequency(normalize.ExtractNumbers(b))

	if len(freqA) == 0 && len(freqB) == 0 {
		return 1
	}
	if len(freqA) == 0 || len(freqB) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for num, countA := range freqA {
		a := float64(countA)
		magA += a * a
		if countB, ok := freqB[num]; ok {
			dot += a * float64(countB)
		}
	}
	for _, countB := range freqB {
		b := float64(countB)
		magB += b * b
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// levenshteinSimilarity normalizes both texts to alphanumerics and
// scores 1 − distance/maxlen. Both-normalize-to-empty is 1; exactly
// one empty is 0.
func levenshteinSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	normA := normalize.ForComparison(a)
	normB := normalize.ForComparison(b)

	if normA == "" && normB == "" {
		return 1
	}
	if normA == "" || normB == "" {
		return 0
	}

	distance := levenshtein.ComputeDistance(normA, normB)
	maxLen := max(len([]rune(normA)), len([]rune(normB)))
	return clamp01(1 - float64(distance)/float64(maxLen))
}

func frequency(numbers []string) map[string]int {
	freq := make(map[string]int, len(numbers))
	for _, n := range numbers {
		freq[n]++
	}
	return freq
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ParseMethod validates a configured method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodNumberFrequency, MethodLevenshtein:
		return Method(s), nil
	case "":
		return MethodNumberFrequency, nil
	default:
		return "", fmt.Errorf("unknown similarity method %q", s)
	}
}

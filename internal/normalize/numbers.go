package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// currencyRe strips currency symbols so "₪1,234" and "$1,234" scan
	// as the same token.
	currencyRe = regexp.MustCompile(`[₪$€£¥₹]`)

	// numberRe matches signed digit groups with optional grouping
	// separators (comma, period, or space), an optional decimal part,
	// and an optional trailing percent sign.
	numberRe = regexp.MustCompile(`-?\d+(?:[,.\s]\d{3})*(?:[,.]\d+)?%?`)
)

// ExtractNumbers scans text for numeric tokens and returns them as
// canonical decimal strings. Both "1.234.567,89" and "1,234,567.89"
// come back as "1234567.89". Percent signs are dropped, keeping the
// base value. Tokens that fail to parse are discarded silently; free
// text legitimately contains digit-like substrings that are not
// numbers.
func ExtractNumbers(text string) []string {
	cleaned := currencyRe.ReplaceAllString(text, "")

	matches := numberRe.FindAllString(cleaned, -1)
	if len(matches) == 0 {
		return nil
	}

	numbers := make([]string, 0, len(matches))
	for _, match := range matches {
		num := canonicalizeNumber(strings.TrimSuffix(match, "%"))
		if _, err := strconv.ParseFloat(num, 64); err != nil {
			continue
		}
		numbers = append(numbers, num)
	}
	return numbers
}

// canonicalizeNumber resolves thousands-vs-decimal separator ambiguity.
// When both separators occur, the one closer to the end of the token is
// the decimal point and the other is grouping. A lone comma followed by
// at most two digits is a European decimal; otherwise commas are
// grouping. An all-period token with more than one period treats all
// but a short trailing group as grouping.
func canonicalizeNumber(num string) string {
	periods := strings.Count(num, ".")
	commas := strings.Count(num, ",")

	switch {
	case commas > 0 && periods > 0:
		if strings.LastIndex(num, ",") > strings.LastIndex(num, ".") {
			// European format: 1.234,56
			num = strings.ReplaceAll(num, ".", "")
			num = strings.ReplaceAll(num, ",", ".")
		} else {
			// US format: 1,234.56
			num = strings.ReplaceAll(num, ",", "")
		}
	case commas > 0:
		afterComma := num[strings.LastIndex(num, ",")+1:]
		if commas == 1 && len(afterComma) <= 2 {
			// European decimal: 123,45
			num = strings.ReplaceAll(num, ",", ".")
		} else {
			// US thousands separators: 1,234,567
			num = strings.ReplaceAll(num, ",", "")
		}
	case periods > 1:
		parts := strings.Split(num, ".")
		if last := parts[len(parts)-1]; len(last) <= 2 {
			num = strings.Join(parts[:len(parts)-1], "") + "." + last
		} else {
			num = strings.ReplaceAll(num, ".", "")
		}
	}

	return strings.ReplaceAll(num, " ", "")
}

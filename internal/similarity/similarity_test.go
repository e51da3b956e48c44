package similarity

import (
	"strings"
	"testing"
)

func TestScore_Identity(t *testing.T) {
	texts := []string{
		"Revenue: 1,234,567 ILS in 2024",
		"plain prose without numbers",
		"| a | b |\n|---|---|\n| 1 | 2 |",
		"",
	}
	for _, method := range []Method{MethodNumberFrequency, MethodLevenshtein} {
		calc := NewCalculator(method)
		for _, text := range texts {
			if got := calc.Score(text, text); got != 1.0 {
				t.Errorf("%s: Score(t, t) = %v for %q, want 1.0", method, got, text)
			}
		}
	}
}

func TestFull_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"Assets: 1,234,567 and Debt: 500,000", "Assets: 1,234,557 and Debt: 500,000"},
		{"Q1: 100, Q2: 200, Q3: 300, Q4: 400", "Q1: 100, Q2: 200, Q4: 400"},
		{"some text", "completely different words"},
		{"", "nonempty"},
	}
	for _, method := range []Method{MethodNumberFrequency, MethodLevenshtein} {
		for _, pair := range pairs {
			ab := Full(pair[0], pair[1], method)
			ba := Full(pair[1], pair[0], method)
			if ab != ba {
				t.Errorf("%s not symmetric for %q/%q: %v vs %v", method, pair[0], pair[1], ab, ba)
			}
		}
	}
}

func TestNumberFrequency_LanguageAgnostic(t *testing.T) {
	// Same numbers in English and Hebrew renderings of the page.
	a := "Revenue: 1,234,567 ILS in 2024"
	b := "הכנסה: 1,234,567 ש\"ח בשנת 2024"

	if got := Full(a, b, MethodNumberFrequency); got != 1.0 {
		t.Errorf("same number multiset should score 1.0, got %v", got)
	}
}

func TestNumberFrequency_FormatAgnostic(t *testing.T) {
	a := "Total: 1,234,567.89 for year 2024"
	b := "Sum: 1.234.567,89 in 2024"

	if got := Full(a, b, MethodNumberFrequency); got != 1.0 {
		t.Errorf("US vs European formats should score 1.0, got %v", got)
	}
}

func TestNumberFrequency_SingleDigitOCRError(t *testing.T) {
	a := "Assets: 1,234,567 and Debt: 500,000"
	b := "Assets: 1,234,557 and Debt: 500,000"

	got := Full(a, b, MethodNumberFrequency)
	// One flipped digit replaces a value in the multiset; overlap drops
	// to the shared 500000 only.
	if got >= 1.0 || got <= 0 {
		t.Errorf("expected partial overlap, got %v", got)
	}

	c := "Assets: 1,234,557"
	if got := Full(a, c, MethodNumberFrequency); got >= 0.5 {
		t.Errorf("disjoint-but-for-nothing sets should score low, got %v", got)
	}
}

func TestNumberFrequency_DisjointSets(t *testing.T) {
	a := "Balance 1,234,567"
	b := "Balance 1,234,557"

	if got := Full(a, b, MethodNumberFrequency); got != 0 {
		t.Errorf("one digit OCR error changes the number set entirely, want 0, got %v", got)
	}
}

func TestNumberFrequency_PartialOverlap(t *testing.T) {
	a := "Q1: 100, Q2: 200, Q3: 300, Q4: 400"
	b := "Q1: 100, Q2: 200, Q4: 400"

	got := Full(a, b, MethodNumberFrequency)
	if got <= 0 || got >= 1 {
		t.Errorf("3 of 4 numbers present should score strictly between 0 and 1, got %v", got)
	}
}

func TestNumberFrequency_EmptyCases(t *testing.T) {
	if got := Full("no digits", "also none", MethodNumberFrequency); got != 1.0 {
		t.Errorf("both number sets empty should score 1.0, got %v", got)
	}
	if got := Full("no digits", "has 42", MethodNumberFrequency); got != 0 {
		t.Errorf("exactly one empty set should score 0, got %v", got)
	}
}

func TestLevenshtein(t *testing.T) {
	t.Run("ignores formatting", func(t *testing.T) {
		a := "Revenue 1500 Expenses 300"
		b := "| Revenue | 1500 |\n| Expenses | 300 |"
		if got := Full(a, b, MethodLevenshtein); got != 1.0 {
			t.Errorf("same alphanumeric content should score 1.0, got %v", got)
		}
	})

	t.Run("empty cases", func(t *testing.T) {
		if got := Full("", "", MethodLevenshtein); got != 1.0 {
			t.Errorf("both empty should score 1.0, got %v", got)
		}
		if got := Full("", "text", MethodLevenshtein); got != 0 {
			t.Errorf("one empty should score 0, got %v", got)
		}
		if got := Full("---", "|||", MethodLevenshtein); got != 1.0 {
			t.Errorf("both normalize to empty should score 1.0, got %v", got)
		}
		if got := Full("---", "text", MethodLevenshtein); got != 0 {
			t.Errorf("one normalizes to empty should score 0, got %v", got)
		}
	})

	t.Run("small edit scores high", func(t *testing.T) {
		a := strings.Repeat("identical content ", 10) + "x"
		b := strings.Repeat("identical content ", 10) + "y"
		if got := Full(a, b, MethodLevenshtein); got < 0.99 {
			t.Errorf("single character edit should score near 1, got %v", got)
		}
	})
}

func TestQuickEstimate(t *testing.T) {
	t.Run("length gate", func(t *testing.T) {
		a := strings.Repeat("word ", 100)
		b := strings.Repeat("word ", 50)
		if got := QuickEstimate(a, b); got != 0 {
			t.Errorf("lengths differing by >5%% should short to 0, got %v", got)
		}
	})

	t.Run("identical content", func(t *testing.T) {
		a := "the quick brown fox jumps over the lazy dog"
		if got := QuickEstimate(a, a); got != 1.0 {
			t.Errorf("identical content should score 1.0, got %v", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := QuickEstimate("", "text"); got != 0 {
			t.Errorf("empty input should score 0, got %v", got)
		}
	})
}

func TestScore_EarlyExit(t *testing.T) {
	// Identical non-trivial content passes the quick filter, so even a
	// number-free text scores 1 without invoking the full method.
	calc := NewCalculator(MethodNumberFrequency)
	text := "identical prose with several distinct words in each copy"
	if got := calc.Score(text, text); got != 1.0 {
		t.Errorf("early exit should return quick score 1.0, got %v", got)
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("levenshtein"); err != nil || m != MethodLevenshtein {
		t.Errorf("ParseMethod(levenshtein) = %v, %v", m, err)
	}
	if m, err := ParseMethod(""); err != nil || m != MethodNumberFrequency {
		t.Errorf("empty method should default to number_frequency, got %v, %v", m, err)
	}
	if _, err := ParseMethod("bogus"); err == nil {
		t.Error("unknown method should error")
	}
}

func TestNewCalculator_UnknownMethodFallsBack(t *testing.T) {
	calc := NewCalculator("bogus")
	if calc.Method() != MethodNumberFrequency {
		t.Errorf("unknown method should fall back to number_frequency, got %v", calc.Method())
	}
}

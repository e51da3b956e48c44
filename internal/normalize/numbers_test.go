package normalize

import (
	"reflect"
	"testing"
)

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"us thousands", "Revenue: 1,234,567 ILS", []string{"1234567"}},
		{"us decimal", "Total: 1,234,567.89", []string{"1234567.89"}},
		{"european decimal", "Sum: 1.234.567,89", []string{"1234567.89"}},
		{"single european comma", "Price 123,45", []string{"123.45"}},
		{"comma as grouping", "1,234,567", []string{"1234567"}},
		{"plain integer", "page 42", []string{"42"}},
		{"negative", "loss of -123.5", []string{"-123.5"}},
		{"percent dropped", "growth 15%", []string{"15"}},
		{"currency stripped", "$1,500 and ₪2,500", []string{"1500", "2500"}},
		{"multiple periods all grouping", "1.234.567", []string{"1234567"}},
		{"no numbers", "no digits here", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumbers(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractNumbers(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractNumbers_FormatAgnostic(t *testing.T) {
	us := ExtractNumbers("Total: 1,234,567.89 for year 2024")
	eu := ExtractNumbers("Sum: 1.234.567,89 in 2024")

	if !reflect.DeepEqual(us, eu) {
		t.Errorf("US and European formats should canonicalize equal: %v vs %v", us, eu)
	}
}

func TestExtractNumbers_Idempotent(t *testing.T) {
	// Re-running extraction on canonical output yields the same values.
	inputs := []string{"1,234,567.89", "-500", "123,45", "15%", "1.234.567"}
	for _, in := range inputs {
		first := ExtractNumbers(in)
		if len(first) != 1 {
			t.Fatalf("ExtractNumbers(%q) = %v, want exactly one number", in, first)
		}
		second := ExtractNumbers(first[0])
		if !reflect.DeepEqual(first, second) {
			t.Errorf("not idempotent for %q: first %v, second %v", in, first, second)
		}
	}
}

func TestExtractNumbers_HebrewContext(t *testing.T) {
	a := ExtractNumbers("Revenue: 1,234,567 ILS in 2024")
	b := ExtractNumbers("הכנסה: 1,234,567 ש\"ח בשנת 2024")

	if !reflect.DeepEqual(a, b) {
		t.Errorf("same numbers in different languages should extract equal: %v vs %v", a, b)
	}
}

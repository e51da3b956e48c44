package normalize

import "testing"

func TestForComparison(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "Hello World", "helloworld"},
		{"strips punctuation", "Total: 1,234.56!", "total123456"},
		{"strips table formatting", "| Date | Amount |\n|---|---|\n| Jan | 100 |", "dateamountjan100"},
		{"hebrew preserved", "סכום: 500", "סכום500"},
		{"no alphanumeric content", "--- ||| !!! ", ""},
		{"empty", "", ""},
		{"mixed case", "ABCdef123", "abcdef123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForComparison(tt.in); got != tt.want {
				t.Errorf("ForComparison(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestForComparison_TableVsProse(t *testing.T) {
	// Two renderings of the same content must compare equal.
	prose := "Revenue 1500 Expenses 300"
	table := "| Revenue | 1500 |\n| Expenses | 300 |"

	if ForComparison(prose) != ForComparison(table) {
		t.Errorf("prose and table renderings should normalize equal: %q vs %q",
			ForComparison(prose), ForComparison(table))
	}
}

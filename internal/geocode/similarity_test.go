package geocode

import (
	"strings"
	"testing"
)

func TestNGramSize(t *testing.T) {
	cases := []struct {
		address string
		want    int
	}{
		{"", 5},
		{"short", 5},
		{strings.Repeat("a", 50), 5},
		{strings.Repeat("a", 72), 6},
		{strings.Repeat("a", 200), 10},
	}
	for _, tc := range cases {
		if got := NGramSize(tc.address); got != tc.want {
			t.Fatalf("NGramSize(len %d): got %d, want %d", len(tc.address), got, tc.want)
		}
	}
}

func TestJaccardNGram(t *testing.T) {
	if got := JaccardNGram("barangay san isidro", "barangay san isidro", 5); got != 1 {
		t.Fatalf("identical strings should score 1, got %f", got)
	}
	if got := JaccardNGram("aaaaaaaa", "bbbbbbbb", 5); got != 0 {
		t.Fatalf("disjoint shingles should score 0, got %f", got)
	}
	got := JaccardNGram("barangay san isidro quezon", "san isidro quezon city", 5)
	if got <= 0 || got >= 1 {
		t.Fatalf("overlapping strings should score strictly between 0 and 1, got %f", got)
	}
}

func TestJaccardNGramShortInputs(t *testing.T) {
	// Inputs shorter than n fall back to the whole string as one shingle.
	if got := JaccardNGram("abc", "abc", 5); got != 1 {
		t.Fatalf("short identical inputs: got %f", got)
	}
	if got := JaccardNGram("abc", "xyz", 5); got != 0 {
		t.Fatalf("short distinct inputs: got %f", got)
	}
	if got := JaccardNGram("", "anything", 5); got != 0 {
		t.Fatalf("empty input: got %f", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("quezon", "quezon"); got != 100 {
		t.Fatalf("identical: got %d", got)
	}
	if got := Ratio("", ""); got != 100 {
		t.Fatalf("both empty: got %d", got)
	}
	if got := Ratio("abc", "xyz"); got != 0 {
		t.Fatalf("fully distinct same-length: got %d", got)
	}
	// One substitution in a ten-rune string.
	if got := Ratio("valenzuela", "valenzuelo"); got != 90 {
		t.Fatalf("single edit: got %d", got)
	}
	if got := Ratio("makati", "makati city"); got < 50 || got > 60 {
		t.Fatalf("suffix difference should land mid-range, got %d", got)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tc := range cases {
		if got := levenshtein([]rune(tc.a), []rune(tc.b)); got != tc.want {
			t.Fatalf("levenshtein(%q, %q): got %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

package geocode

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseServiceable(t *testing.T) {
	csv := strings.Join([]string{
		"municipality_name",
		"City of Manila",
		"Quezon City",
		"quezon city",
		"Gen. Trias",
		"",
		"123",
	}, "\n")

	got, err := parseServiceable(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"manila", "quezon city", "general trias"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseServiceableNoHeader(t *testing.T) {
	got, err := parseServiceable(strings.NewReader("Makati\nPasig\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"makati", "pasig"}) {
		t.Fatalf("first data row should survive when there is no header, got %v", got)
	}
}

func TestViable(t *testing.T) {
	serviceable := []string{"quezon city", "makati", "general trias"}

	cases := []struct {
		location string
		want     string
	}{
		{"Quezon City", "Yes"},
		{"quezon citty", "Yes"},
		{"Gen. Trias", "Yes"},
		{"Davao City", "No"},
		{"", "No"},
	}
	for _, tc := range cases {
		if got := Viable(tc.location, serviceable, 90); got != tc.want {
			t.Fatalf("Viable(%q): got %s, want %s", tc.location, got, tc.want)
		}
	}

	if got := Viable("Quezon City", nil, 90); got != "No" {
		t.Fatalf("empty serviceable list should never be viable, got %s", got)
	}
}

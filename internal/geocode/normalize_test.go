package geocode

import "testing"

func TestCleanAddress(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Las Piñas", "las pinas"},
		{"PEÑABLANCA", "penablanca"},
		{"Parañaque", "paranaque"},
		{"Quezon City", "quezon city"},
	}
	for _, tc := range cases {
		if got := CleanAddress(tc.in); got != tc.want {
			t.Fatalf("CleanAddress(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLocation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"City of Manila", "manila"},
		{"Municipality of Pateros", "pateros"},
		{"Gen. Trias", "general trias"},
		{"Sto. Niño", "santo nio"},
		{"  Makati,  1226  ", "makati"},
		{"", ""},
		{"123-456", ""},
	}
	for _, tc := range cases {
		if got := NormalizeLocation(tc.in); got != tc.want {
			t.Fatalf("NormalizeLocation(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

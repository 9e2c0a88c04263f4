package grader

import "testing"

func TestIsVariantPairBothDirections(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"colour", "color", true},
		{"color", "colour", true},
		{"theatre", "theater", true},
		{"organise", "organize", true},
		{"grey", "gray", true},
		{"colour", "colour", false},
		{"colour", "center", false},
		{"weather", "whether", false},
		{"", "color", false},
		{"colour", "", false},
	}
	for _, tt := range tests {
		if got := IsVariantPair(tt.a, tt.b); got != tt.want {
			t.Errorf("IsVariantPair(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVariantTableHasNoIdentityPairs(t *testing.T) {
	for br, am := range britishToAmerican {
		if br == am {
			t.Errorf("identity pair %q", br)
		}
		if br == "" || am == "" {
			t.Errorf("empty spelling in pair %q/%q", br, am)
		}
	}
}

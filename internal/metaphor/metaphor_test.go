package metaphor

import "testing"

func TestFor(t *testing.T) {
	tests := []struct {
		co2  float64
		want string
	}{
		{0, "Zero impact! Great job!"},
		{-1, "Zero impact! Great job!"},
		{0.3, "That's like charging your phone 38 times."},
		{0.5, "That's like charging your phone 62 times."},
		{0.1, "That's like charging your phone 12 times."},
		{0.9, "That's like charging your phone 112 times."},
		{2.8, "That's equivalent to driving a car for 11.2 km."},
		{1, "That's equivalent to driving a car for 4.0 km."},
		{3.8, "That's like driving 15.2 km, and a tree would need 63.0 days to absorb it."},
		{6.6, "That's like driving 26.4 km, and a tree would need 109.5 days to absorb it."},
	}
	for _, tt := range tests {
		if got := For(tt.co2); got != tt.want {
			t.Fatalf("For(%v) = %q, want %q", tt.co2, got, tt.want)
		}
	}
}

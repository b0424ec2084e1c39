package training

import "testing"

// TestEstimateOneRepMax verifies the Epley estimate, its rounding and the
// 1..12 rep window.
func TestEstimateOneRepMax(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		reps   int
		want   float64
		wantOK bool
	}{
		{"225x5 rounds half up", 225, 5, 263, true},
		{"185x5", 185, 5, 216, true},
		{"single", 300, 1, 310, true},
		{"twelve reps still counts", 100, 12, 140, true},
		{"fifteen reps excluded", 225, 15, 0, false},
		{"zero reps excluded", 225, 0, 0, false},
		{"no load excluded", 0, 5, 0, false},
		{"negative load excluded", -20, 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateOneRepMax(tt.weight, tt.reps)
			if ok != tt.wantOK {
				t.Fatalf("EstimateOneRepMax(%v, %d) ok = %v, want %v", tt.weight, tt.reps, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("EstimateOneRepMax(%v, %d) = %v, want %v", tt.weight, tt.reps, got, tt.want)
			}
		})
	}
}

// TestParseLeadingFloat verifies best-effort numeric parsing of user-entered
// set fields.
func TestParseLeadingFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"135", 135},
		{" 62.5 ", 62.5},
		{"135 lbs", 135},
		{"100kg", 100},
		{"5.", 5},
		{"-10", -10},
		{"", 0},
		{"bodyweight", 0},
		{".", 0},
		{"1.2.3", 1.2},
	}

	for _, tt := range tests {
		if got := parseLeadingFloat(tt.in); got != tt.want {
			t.Errorf("parseLeadingFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestParseLeadingInt verifies rep strings truncate toward zero.
func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"5", 5},
		{"8-10", 8},
		{"5.5", 5},
		{"AMRAP", 0},
	}

	for _, tt := range tests {
		if got := parseLeadingInt(tt.in); got != tt.want {
			t.Errorf("parseLeadingInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

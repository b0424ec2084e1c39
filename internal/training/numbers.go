package training

import (
	"math"
	"strconv"
	"strings"
)

// Rep range in which an Epley estimate is considered reliable.
const (
	minE1RMReps = 1
	maxE1RMReps = 12
)

// EstimateOneRepMax returns the Epley estimate weight*(1+reps/30) rounded to
// the nearest integer (half away from zero). ok is false when the set falls
// outside the reliable rep range or carries no load.
func EstimateOneRepMax(weight float64, reps int) (e1rm float64, ok bool) {
	if weight <= 0 || reps < minE1RMReps || reps > maxE1RMReps {
		return 0, false
	}
	return math.Round(weight * (1 + float64(reps)/30)), true
}

// parseLeadingFloat reads the longest numeric prefix of s ("135 lbs" -> 135).
// Unparseable input yields 0.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			break scan
		}
		end = i + 1
	}
	if !seenDigit {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimRight(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseLeadingInt is parseLeadingFloat truncated toward zero ("5.5" -> 5).
func parseLeadingInt(s string) int {
	return int(parseLeadingFloat(s))
}

// roundTenth rounds to one decimal place.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

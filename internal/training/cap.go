package training

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxBytes is the serialized-size budget for a TrainingContext.
const DefaultMaxBytes = 16384

// Cap trims tc in place until its JSON encoding fits maxBytes. Older
// summaries go first, oldest first, then cardio entries. Detail workouts and
// the aggregate maps are never touched, so the result may still exceed
// maxBytes. A maxBytes <= 0 disables the cap. Returns the final size.
func Cap(tc *TrainingContext, maxBytes int) (int, error) {
	for {
		b, err := json.Marshal(tc)
		if err != nil {
			return 0, fmt.Errorf("encoding training context: %w", err)
		}
		if maxBytes <= 0 || len(b) <= maxBytes {
			return len(b), nil
		}

		switch {
		case len(tc.OlderWorkouts) > 0:
			tc.OlderWorkouts = tc.OlderWorkouts[:len(tc.OlderWorkouts)-1]
		case len(tc.CardioWorkouts) > 0:
			tc.CardioWorkouts = tc.CardioWorkouts[:len(tc.CardioWorkouts)-1]
		default:
			return len(b), nil
		}
		tc.Truncated = true
	}
}

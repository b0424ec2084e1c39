package training

import (
	"sort"
	"strings"

	"github.com/claude/trainctx/internal/models"
)

// Normalize merges personal and group workout documents into one list of
// completed workouts, most recent first. Dates are coerced to YYYY-MM-DD
// keys; unreadable dates key to the epoch and sort last. Source documents
// are not modified. The two inputs are assumed disjoint.
func Normalize(personal, group []models.WorkoutDoc) []models.Workout {
	out := make([]models.Workout, 0, len(personal)+len(group))
	for _, d := range personal {
		if w, ok := normalizeDoc(d, false); ok {
			out = append(out, w)
		}
	}
	for _, d := range group {
		if w, ok := normalizeDoc(d, true); ok {
			out = append(out, w)
		}
	}

	// YYYY-MM-DD keys sort lexically; stable keeps personal-before-group on ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

func normalizeDoc(d models.WorkoutDoc, fromGroup bool) (models.Workout, bool) {
	if !strings.EqualFold(strings.TrimSpace(d.Status), models.StatusCompleted) {
		return models.Workout{}, false
	}

	workoutType := strings.ToLower(strings.TrimSpace(d.WorkoutType))
	if workoutType != models.WorkoutCardio {
		workoutType = models.WorkoutStrength
	}

	w := models.Workout{
		ID:          d.ID,
		Name:        d.Name,
		Date:        d.Date.Key(),
		DateValid:   d.Date.Valid,
		WorkoutType: workoutType,
		IsGroup:     d.IsGroup || fromGroup,
		Duration:    d.Duration.Ptr(),
		CardioType:  d.CardioType,
		Distance:    d.Distance.Ptr(),
		Exercises:   make([]models.Exercise, 0, len(d.Exercises)),
	}

	for _, ex := range d.Exercises {
		t := models.ParseExerciseType(ex.Type)
		e := models.Exercise{
			Name: ex.Name,
			Type: t,
			Sets: make([]models.Set, 0, len(ex.Sets)),
		}
		for _, s := range ex.Sets {
			e.Sets = append(e.Sets, s.ToSet(t))
		}
		w.Exercises = append(w.Exercises, e)
	}
	return w, true
}

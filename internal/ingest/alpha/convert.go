package alpha

import (
	"strconv"
	"strings"

	"github.com/claude/trainctx/internal/models"
	"github.com/google/uuid"
)

// idSpace namespaces the deterministic workout ids so that re-importing the
// same export maps every session onto the id it already has.
var idSpace = uuid.MustParse("5b1d3c2e-7f0a-4c1e-9a8b-2d6e4f1a0c37")

// WorkoutID returns the stable id of a session for userID.
func WorkoutID(userID string, s Session) string {
	key := userID + "|" + s.Date.Format("2006-01-02T15:04") + "|" + s.Name
	return uuid.NewSHA1(idSpace, []byte(key)).String()
}

// ToWorkout converts a session into a completed strength workout. Warmup
// sets are dropped and RPE is derived as 10 - RIR where RIR was recorded.
func ToWorkout(userID string, s Session) models.WorkoutDoc {
	doc := models.WorkoutDoc{
		ID:          WorkoutID(userID, s),
		UserID:      userID,
		Name:        s.Name,
		Date:        models.NewFlexDate(s.Date),
		Status:      models.StatusCompleted,
		WorkoutType: models.WorkoutStrength,
		Exercises:   []models.ExerciseDoc{},
	}
	if mins, ok := parseDurationMinutes(s.Duration); ok {
		doc.Duration = models.Num(mins)
	}

	for _, ex := range s.Exercises {
		e := exerciseDoc(ex)
		if len(e.Sets) > 0 {
			doc.Exercises = append(doc.Exercises, e)
		}
	}
	return doc
}

// exerciseDoc keeps working sets only. An exercise whose working sets are
// all "+0" is bodyweight; added load makes it a weight exercise.
func exerciseDoc(ex Exercise) models.ExerciseDoc {
	var working []Set
	bodyweight := true
	for _, s := range ex.Sets {
		if s.Warmup {
			continue
		}
		working = append(working, s)
		if !s.BodyweightPlus || s.WeightKg > 0 {
			bodyweight = false
		}
	}

	e := models.ExerciseDoc{Name: ex.Name, Type: string(models.ExerciseWeight), Sets: []models.SetDoc{}}
	if len(working) > 0 && bodyweight {
		e.Type = string(models.ExerciseBodyweight)
	}

	for _, s := range working {
		sd := models.SetDoc{ActualReps: models.FlexString(strconv.Itoa(s.Reps))}
		if ex.TargetReps > 0 {
			sd.PrescribedReps = models.FlexString(strconv.Itoa(ex.TargetReps))
		}
		if e.Type == string(models.ExerciseWeight) {
			sd.ActualWeight = models.FlexString(formatKg(s.WeightKg))
		}
		if s.RIRTracked {
			sd.RPE = models.Num(min(max(10-s.RIR, 1), 10))
		}
		e.Sets = append(e.Sets, sd)
	}
	return e
}

func formatKg(w float64) string {
	s := strconv.FormatFloat(w, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

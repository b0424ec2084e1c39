package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExerciseType selects which set variant an exercise carries.
type ExerciseType string

const (
	ExerciseWeight     ExerciseType = "weight"
	ExerciseBodyweight ExerciseType = "bodyweight"
	ExerciseTime       ExerciseType = "time"
)

// ParseExerciseType maps a stored type string to an ExerciseType,
// defaulting to weight.
func ParseExerciseType(s string) ExerciseType {
	switch ExerciseType(strings.ToLower(strings.TrimSpace(s))) {
	case ExerciseBodyweight:
		return ExerciseBodyweight
	case ExerciseTime:
		return ExerciseTime
	default:
		return ExerciseWeight
	}
}

// Effort is the subjective data every set variant may carry. Zero means
// not recorded.
type Effort struct {
	RPE       float64
	PainLevel float64
}

// Set is one of WeightSet, BodyweightSet or TimeSet.
type Set interface {
	Kind() ExerciseType
	Effort() Effort
	// Planned reports whether the set only carries prescribed values,
	// i.e. it was never performed.
	Planned() bool
}

// WeightSet is a set of a weight-type exercise.
type WeightSet struct {
	PrescribedWeight string  `json:"prescribedWeight,omitempty"`
	PrescribedReps   string  `json:"prescribedReps,omitempty"`
	ActualWeight     string  `json:"actualWeight,omitempty"`
	ActualReps       string  `json:"actualReps,omitempty"`
	RPE              float64 `json:"rpe,omitempty"`
	PainLevel        float64 `json:"painLevel,omitempty"`
}

func (s WeightSet) Kind() ExerciseType { return ExerciseWeight }
func (s WeightSet) Effort() Effort      { return Effort{RPE: s.RPE, PainLevel: s.PainLevel} }

// Planned is true when neither actual weight nor actual reps were logged and
// either prescription is present. A set prescribing only reps counts as
// planned too, so its RPE and pain are not aggregated.
func (s WeightSet) Planned() bool {
	return s.ActualWeight == "" && s.ActualReps == "" &&
		(s.PrescribedWeight != "" || s.PrescribedReps != "")
}

// BodyweightSet is a set of a bodyweight exercise; it has no load.
type BodyweightSet struct {
	PrescribedReps string  `json:"prescribedReps,omitempty"`
	ActualReps     string  `json:"actualReps,omitempty"`
	RPE            float64 `json:"rpe,omitempty"`
	PainLevel      float64 `json:"painLevel,omitempty"`
}

func (s BodyweightSet) Kind() ExerciseType { return ExerciseBodyweight }
func (s BodyweightSet) Effort() Effort      { return Effort{RPE: s.RPE, PainLevel: s.PainLevel} }

func (s BodyweightSet) Planned() bool {
	return s.ActualReps == "" && s.PrescribedReps != ""
}

// TimeSet is a set of a timed exercise (planks, carries, intervals).
type TimeSet struct {
	PrescribedTime string  `json:"prescribedTime,omitempty"`
	ActualTime     string  `json:"actualTime,omitempty"`
	RPE            float64 `json:"rpe,omitempty"`
	PainLevel      float64 `json:"painLevel,omitempty"`
}

func (s TimeSet) Kind() ExerciseType { return ExerciseTime }
func (s TimeSet) Effort() Effort      { return Effort{RPE: s.RPE, PainLevel: s.PainLevel} }

func (s TimeSet) Planned() bool {
	return s.ActualTime == "" && s.PrescribedTime != ""
}

// ToSet converts the stored shape into the variant for the exercise type.
// Fields that do not belong to the variant are dropped.
func (d SetDoc) ToSet(t ExerciseType) Set {
	rpe, pain := d.RPE.Or(0), d.PainLevel.Or(0)
	switch t {
	case ExerciseBodyweight:
		return BodyweightSet{
			PrescribedReps: d.PrescribedReps.String(),
			ActualReps:     d.ActualReps.String(),
			RPE:            rpe,
			PainLevel:      pain,
		}
	case ExerciseTime:
		return TimeSet{
			PrescribedTime: d.PrescribedTime.String(),
			ActualTime:     d.ActualTime.String(),
			RPE:            rpe,
			PainLevel:      pain,
		}
	default:
		return WeightSet{
			PrescribedWeight: d.PrescribedWeight.String(),
			PrescribedReps:   d.PrescribedReps.String(),
			ActualWeight:     d.ActualWeight.String(),
			ActualReps:       d.ActualReps.String(),
			RPE:              rpe,
			PainLevel:        pain,
		}
	}
}

// Workout is a normalized, completed workout.
type Workout struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Date        string     `json:"date"`
	DateValid   bool       `json:"-"`
	WorkoutType string     `json:"workoutType"`
	IsGroup     bool       `json:"isGroup,omitempty"`
	Duration    *float64   `json:"duration,omitempty"`
	CardioType  string     `json:"cardioType,omitempty"`
	Distance    *float64   `json:"distance,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

// IsCardio reports whether the workout is a cardio session.
func (w Workout) IsCardio() bool {
	return w.WorkoutType == WorkoutCardio
}

// Exercise is a normalized exercise with typed sets.
type Exercise struct {
	Name string       `json:"name"`
	Type ExerciseType `json:"type"`
	Sets []Set        `json:"sets"`
}

// UnmarshalJSON decodes sets into the variant matching the exercise type.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string            `json:"name"`
		Type string            `json:"type"`
		Sets []json.RawMessage `json:"sets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Name = raw.Name
	e.Type = ParseExerciseType(raw.Type)
	e.Sets = make([]Set, 0, len(raw.Sets))
	for i, rs := range raw.Sets {
		var (
			set Set
			err error
		)
		switch e.Type {
		case ExerciseBodyweight:
			var s BodyweightSet
			err = json.Unmarshal(rs, &s)
			set = s
		case ExerciseTime:
			var s TimeSet
			err = json.Unmarshal(rs, &s)
			set = s
		default:
			var s WeightSet
			err = json.Unmarshal(rs, &s)
			set = s
		}
		if err != nil {
			return fmt.Errorf("decoding %s set %d: %w", e.Name, i, err)
		}
		e.Sets = append(e.Sets, set)
	}
	return nil
}

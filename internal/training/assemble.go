package training

import (
	"sort"
	"strings"

	"github.com/claude/trainctx/internal/models"
)

// Default window sizes for Assemble.
const (
	DefaultDetailCount      = 3
	DefaultSummaryCount     = 5
	DefaultSummaryExercises = 4
	DefaultCardioLimit      = 5
	DefaultFormCheckLimit   = 5
	DefaultCoachNoteLimit   = 5
)

const statusActive = "active"

// TrainingContext is the bounded payload handed to an LLM prompt or the
// admin UI. It is rebuilt per request and never persisted.
type TrainingContext struct {
	Profile        *ProfileSnippet        `json:"profile"`
	MaxLifts       map[string]MaxLift     `json:"maxLifts"`
	PainHistory    map[string]PainRecord  `json:"painHistory"`
	RPEAverages    map[string]float64     `json:"rpeAverages"`
	RecentWorkouts []models.Workout       `json:"recentWorkouts"`
	OlderWorkouts  []WorkoutSummary       `json:"olderWorkouts"`
	CardioWorkouts []CardioSummary        `json:"cardioWorkouts"`
	Goals          []Goal                 `json:"goals"`
	Schedules      []Schedule             `json:"schedules"`
	OuraData       *models.RecoveryScores `json:"ouraData"`
	CoachNotes     []CoachNote            `json:"coachNotes"`
	FormChecks     []FormCheck            `json:"formChecks"`
	PartialSources []string               `json:"partialSources,omitempty"`
	Truncated      bool                   `json:"truncated,omitempty"`
	Degraded       bool                   `json:"degraded,omitempty"`
}

// ProfileSnippet is the part of the user profile worth putting in a prompt.
type ProfileSnippet struct {
	DisplayName     string   `json:"displayName,omitempty"`
	ExperienceLevel string   `json:"experienceLevel,omitempty"`
	Goals           string   `json:"goals,omitempty"`
	Injuries        string   `json:"injuries,omitempty"`
	Bodyweight      *float64 `json:"bodyweight,omitempty"`
	Units           string   `json:"units,omitempty"`
}

// WorkoutSummary is the coarse view of an older strength workout.
type WorkoutSummary struct {
	ID            string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Date          string            `json:"date"`
	ExerciseCount int               `json:"exerciseCount"`
	Exercises     []ExerciseSummary `json:"exercises"`
}

// ExerciseSummary is an exercise name with its set count.
type ExerciseSummary struct {
	Name string `json:"name"`
	Sets int    `json:"sets"`
}

// CardioSummary is the reduced view of a cardio session.
type CardioSummary struct {
	Name       string   `json:"name,omitempty"`
	Date       string   `json:"date"`
	Duration   *float64 `json:"duration"`
	CardioType string   `json:"cardioType,omitempty"`
	Distance   *float64 `json:"distance"`
}

// Goal is an active goal in the unified naming scheme.
type Goal struct {
	Name         string   `json:"name"`
	CurrentValue *float64 `json:"currentValue"`
	TargetValue  *float64 `json:"targetValue"`
	TargetDate   string   `json:"targetDate,omitempty"`
}

// Schedule is an active training schedule.
type Schedule struct {
	Name        string   `json:"name"`
	Days        []string `json:"days,omitempty"`
	WorkoutType string   `json:"workoutType,omitempty"`
	StartDate   string   `json:"startDate,omitempty"`
	EndDate     string   `json:"endDate,omitempty"`
}

// CoachNote is a note from a coach or admin.
type CoachNote struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
}

// FormCheck is a past form review.
type FormCheck struct {
	Exercise string   `json:"exercise"`
	Date     string   `json:"date,omitempty"`
	Score    *float64 `json:"score"`
	Summary  string   `json:"summary,omitempty"`
}

// AssembleOptions sets the window sizes. Zero values take the defaults.
type AssembleOptions struct {
	DetailCount      int
	SummaryCount     int
	SummaryExercises int
	CardioLimit      int
	FormCheckLimit   int
	CoachNoteLimit   int
}

func (o AssembleOptions) withDefaults() AssembleOptions {
	def := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}
	o.DetailCount = def(o.DetailCount, DefaultDetailCount)
	o.SummaryCount = def(o.SummaryCount, DefaultSummaryCount)
	o.SummaryExercises = def(o.SummaryExercises, DefaultSummaryExercises)
	o.CardioLimit = def(o.CardioLimit, DefaultCardioLimit)
	o.FormCheckLimit = def(o.FormCheckLimit, DefaultFormCheckLimit)
	o.CoachNoteLimit = def(o.CoachNoteLimit, DefaultCoachNoteLimit)
	return o
}

// AssembleInput is everything Assemble combines. Any source may be empty.
type AssembleInput struct {
	Workouts   []models.Workout
	Aggregates Aggregates
	Goals      []models.GoalDoc
	Schedules  []models.ScheduleDoc
	Recovery   *models.RecoveryScores
	CoachNotes []models.CoachNoteDoc
	FormChecks []models.FormCheckDoc
	Profile    *models.ProfileDoc
	Options    AssembleOptions
}

// EmptyContext is the minimal context returned when nothing could be built.
func EmptyContext() *TrainingContext {
	return &TrainingContext{
		MaxLifts:       map[string]MaxLift{},
		PainHistory:    map[string]PainRecord{},
		RPEAverages:    map[string]float64{},
		RecentWorkouts: []models.Workout{},
		OlderWorkouts:  []WorkoutSummary{},
		CardioWorkouts: []CardioSummary{},
		Goals:          []Goal{},
		Schedules:      []Schedule{},
		CoachNotes:     []CoachNote{},
		FormChecks:     []FormCheck{},
	}
}

// Assemble composes the training context from reducer output and the
// auxiliary sources. Workouts must be most recent first.
func Assemble(in AssembleInput) *TrainingContext {
	opts := in.Options.withDefaults()
	tc := EmptyContext()

	if in.Aggregates.MaxLifts != nil {
		tc.MaxLifts = in.Aggregates.MaxLifts
	}
	if in.Aggregates.PainHistory != nil {
		tc.PainHistory = in.Aggregates.PainHistory
	}
	if in.Aggregates.RPEAverages != nil {
		tc.RPEAverages = in.Aggregates.RPEAverages
	}

	strength := 0
	for _, w := range in.Workouts {
		if w.IsCardio() {
			if len(tc.CardioWorkouts) < opts.CardioLimit {
				tc.CardioWorkouts = append(tc.CardioWorkouts, summarizeCardio(w))
			}
			continue
		}
		switch {
		case strength < opts.DetailCount:
			tc.RecentWorkouts = append(tc.RecentWorkouts, w)
		case strength < opts.DetailCount+opts.SummaryCount:
			tc.OlderWorkouts = append(tc.OlderWorkouts, summarizeWorkout(w, opts.SummaryExercises))
		}
		strength++
	}

	for _, g := range in.Goals {
		if strings.EqualFold(strings.TrimSpace(g.Status), statusActive) {
			tc.Goals = append(tc.Goals, mapGoal(g))
		}
	}

	for _, s := range in.Schedules {
		// Schedules written before status existed are treated as active.
		status := strings.TrimSpace(s.Status)
		if status != "" && !strings.EqualFold(status, statusActive) {
			continue
		}
		tc.Schedules = append(tc.Schedules, Schedule{
			Name:        s.Name,
			Days:        s.Days,
			WorkoutType: s.WorkoutType,
			StartDate:   validKey(s.StartDate),
			EndDate:     validKey(s.EndDate),
		})
	}

	tc.OuraData = in.Recovery
	tc.CoachNotes = coachNotes(in.CoachNotes, opts.CoachNoteLimit)
	tc.FormChecks = formChecks(in.FormChecks, opts.FormCheckLimit)

	if in.Profile != nil {
		tc.Profile = &ProfileSnippet{
			DisplayName:     in.Profile.DisplayName,
			ExperienceLevel: in.Profile.ExperienceLevel,
			Goals:           in.Profile.Goals,
			Injuries:        in.Profile.Injuries,
			Bodyweight:      in.Profile.Bodyweight.Ptr(),
			Units:           in.Profile.Units,
		}
	}
	return tc
}

func summarizeWorkout(w models.Workout, maxExercises int) WorkoutSummary {
	s := WorkoutSummary{
		ID:            w.ID,
		Name:          w.Name,
		Date:          w.Date,
		ExerciseCount: len(w.Exercises),
		Exercises:     []ExerciseSummary{},
	}
	for i, ex := range w.Exercises {
		if i == maxExercises {
			break
		}
		s.Exercises = append(s.Exercises, ExerciseSummary{Name: ex.Name, Sets: len(ex.Sets)})
	}
	return s
}

func summarizeCardio(w models.Workout) CardioSummary {
	return CardioSummary{
		Name:       w.Name,
		Date:       w.Date,
		Duration:   w.Duration,
		CardioType: w.CardioType,
		Distance:   w.Distance,
	}
}

// mapGoal prefers currentValue/targetValue and falls back to the older
// currentWeight/targetWeight fields, each independently.
func mapGoal(g models.GoalDoc) Goal {
	name := g.Lift
	if strings.TrimSpace(name) == "" {
		name = g.MetricType
	}
	current := g.CurrentValue
	if !current.Set {
		current = g.CurrentWeight
	}
	target := g.TargetValue
	if !target.Set {
		target = g.TargetWeight
	}
	return Goal{
		Name:         name,
		CurrentValue: current.Ptr(),
		TargetValue:  target.Ptr(),
		TargetDate:   validKey(g.TargetDate),
	}
}

func coachNotes(docs []models.CoachNoteDoc, limit int) []CoachNote {
	sorted := make([]models.CoachNoteDoc, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Key() > sorted[j].CreatedAt.Key()
	})

	out := []CoachNote{}
	for _, n := range sorted {
		if len(out) == limit {
			break
		}
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		out = append(out, CoachNote{Author: n.Author, Text: n.Text, Date: validKey(n.CreatedAt)})
	}
	return out
}

func formChecks(docs []models.FormCheckDoc, limit int) []FormCheck {
	sorted := make([]models.FormCheckDoc, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Key() > sorted[j].Date.Key()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]FormCheck, 0, len(sorted))
	for _, f := range sorted {
		out = append(out, FormCheck{
			Exercise: f.Exercise,
			Date:     validKey(f.Date),
			Score:    f.Score.Ptr(),
			Summary:  f.Summary,
		})
	}
	return out
}

func validKey(d models.FlexDate) string {
	if !d.Valid {
		return ""
	}
	return d.Key()
}

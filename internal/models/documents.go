package models

// Workout status values.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
)

// Workout types.
const (
	WorkoutStrength = "strength"
	WorkoutCardio   = "cardio"
)

// WorkoutDoc is a stored workout document, personal or group-assigned.
type WorkoutDoc struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId,omitempty"`
	Name        string        `json:"name,omitempty"`
	Date        FlexDate      `json:"date"`
	Status      string        `json:"status"`
	WorkoutType string        `json:"workoutType,omitempty"`
	IsGroup     bool          `json:"isGroup,omitempty"`
	Duration    FlexNumber    `json:"duration"`
	CardioType  string        `json:"cardioType,omitempty"`
	Distance    FlexNumber    `json:"distance"`
	Notes       string        `json:"notes,omitempty"`
	Exercises   []ExerciseDoc `json:"exercises"`
}

// ExerciseDoc is one exercise inside a WorkoutDoc.
type ExerciseDoc struct {
	Name string   `json:"name"`
	Type string   `json:"type,omitempty"`
	Sets []SetDoc `json:"sets"`
}

// SetDoc is the loosely-typed stored shape of a set. Which fields are
// meaningful depends on the parent exercise type; see ToSet.
type SetDoc struct {
	PrescribedWeight FlexString `json:"prescribedWeight,omitempty"`
	PrescribedReps   FlexString `json:"prescribedReps,omitempty"`
	PrescribedTime   FlexString `json:"prescribedTime,omitempty"`
	ActualWeight     FlexString `json:"actualWeight,omitempty"`
	ActualReps       FlexString `json:"actualReps,omitempty"`
	ActualTime       FlexString `json:"actualTime,omitempty"`
	RPE              FlexNumber `json:"rpe"`
	PainLevel        FlexNumber `json:"painLevel"`
}

// GoalDoc is a training goal. Older documents use currentWeight/targetWeight,
// newer ones currentValue/targetValue.
type GoalDoc struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Lift          string     `json:"lift,omitempty"`
	MetricType    string     `json:"metricType,omitempty"`
	CurrentWeight FlexNumber `json:"currentWeight"`
	TargetWeight  FlexNumber `json:"targetWeight"`
	CurrentValue  FlexNumber `json:"currentValue"`
	TargetValue   FlexNumber `json:"targetValue"`
	TargetDate    FlexDate   `json:"targetDate"`
}

// ScheduleDoc is a recurring training schedule.
type ScheduleDoc struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status,omitempty"`
	Days        []string `json:"days,omitempty"`
	WorkoutType string   `json:"workoutType,omitempty"`
	StartDate   FlexDate `json:"startDate"`
	EndDate     FlexDate `json:"endDate"`
}

// FormCheckDoc is the result of an AI form review of an uploaded lift video.
type FormCheckDoc struct {
	ID       string     `json:"id"`
	Exercise string     `json:"exercise"`
	Date     FlexDate   `json:"date"`
	Score    FlexNumber `json:"score"`
	Summary  string     `json:"summary,omitempty"`
}

// CoachNoteDoc is a free-text note left by a coach or admin.
type CoachNoteDoc struct {
	ID        string   `json:"id"`
	Author    string   `json:"author,omitempty"`
	Text      string   `json:"text"`
	CreatedAt FlexDate `json:"createdAt"`
}

// ProfileDoc is the subset of the user profile the context needs.
type ProfileDoc struct {
	UserID           string     `json:"userId"`
	DisplayName      string     `json:"displayName,omitempty"`
	ExperienceLevel  string     `json:"experienceLevel,omitempty"`
	Goals            string     `json:"goals,omitempty"`
	Injuries         string     `json:"injuries,omitempty"`
	Bodyweight       FlexNumber `json:"bodyweight"`
	Units            string     `json:"units,omitempty"`
	RateLimitResetAt FlexDate   `json:"rateLimitResetAt"`
}

// RecoveryScores is what the recovery-device provider returns.
type RecoveryScores struct {
	Latest   DailyScores `json:"latest"`
	Averages DailyScores `json:"averages"`
}

// DailyScores holds the three headline recovery scores.
type DailyScores struct {
	Sleep     *float64 `json:"sleep,omitempty"`
	Readiness *float64 `json:"readiness,omitempty"`
	Activity  *float64 `json:"activity,omitempty"`
}

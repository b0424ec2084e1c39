package ingest

// Result holds the outcome of an import.
type Result struct {
	WorkoutsReceived int `json:"workouts_received"`
	WorkoutsInserted int `json:"workouts_inserted"`
	WorkoutsSkipped  int `json:"workouts_skipped"`

	SetsReceived int `json:"sets_received"`
	SetsInserted int `json:"sets_inserted"`

	Message string `json:"message,omitempty"`
}

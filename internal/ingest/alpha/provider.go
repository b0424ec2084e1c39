package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/trainctx/internal/ingest"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/claude/trainctx/internal/models"
)

// WorkoutWriter stores workout documents. InsertWorkout reports false when
// the workout already exists.
type WorkoutWriter interface {
	InsertWorkout(ctx context.Context, userID string, doc models.WorkoutDoc) (bool, error)
}

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	w       WorkoutWriter
	log     *slog.Logger
	metrics *metrics.Manager
	dryRun  bool
}

// NewProvider creates a new Alpha Progression ingest provider. log and m may be nil.
func NewProvider(w WorkoutWriter, log *slog.Logger, m *metrics.Manager) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Provider{w: w, log: log, metrics: m}
}

// DryRun makes Ingest count without writing.
func (p *Provider) DryRun(on bool) *Provider {
	p.dryRun = on
	return p
}

// Ingest parses a CSV export and stores one completed workout per session.
// Sessions that were imported before are skipped.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID string) (*ingest.Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{}
	for _, s := range sessions {
		doc := ToWorkout(userID, s)
		if len(doc.Exercises) == 0 {
			p.log.Debug("skipping session without working sets", "session", s.Name, "date", s.Date)
			continue
		}
		sets := 0
		for _, e := range doc.Exercises {
			sets += len(e.Sets)
		}
		result.WorkoutsReceived++
		result.SetsReceived += sets

		if p.dryRun {
			continue
		}
		inserted, err := p.w.InsertWorkout(ctx, userID, doc)
		if err != nil {
			return result, fmt.Errorf("storing session %s: %w", s.Date.Format("2006-01-02"), err)
		}
		if !inserted {
			result.WorkoutsSkipped++
			continue
		}
		result.WorkoutsInserted++
		result.SetsInserted += sets
		p.metrics.CounterImportedSets.Add(float64(sets))
	}

	p.log.Info("alpha import finished",
		"user_id", userID,
		"sessions", len(sessions),
		"workouts_inserted", result.WorkoutsInserted,
		"workouts_skipped", result.WorkoutsSkipped,
		"sets_inserted", result.SetsInserted,
	)
	return result, nil
}

// Package contextsvc builds a user's training context: it fetches every
// source concurrently, runs the training pipeline and caches the result.
package contextsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/claude/trainctx/internal/gather"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/claude/trainctx/internal/models"
	"github.com/claude/trainctx/internal/training"
	"github.com/coocood/freecache"
)

// Source names, as reported in partialSources and metrics.
const (
	SourceWorkouts      = "workouts"
	SourceGroupWorkouts = "group_workouts"
	SourceGoals         = "goals"
	SourceSchedules     = "schedules"
	SourceFormChecks    = "form_checks"
	SourceCoachNotes    = "coach_notes"
	SourceProfile       = "profile"
	SourceRecovery      = "recovery"
)

const maxUserIDLen = 128

var (
	// ErrInvalidUser is returned with an empty context when the user id is unusable.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrAssembly is returned with an empty context when the pipeline itself fails.
	ErrAssembly = errors.New("assembling training context")
)

// Sources reads a user's stored documents.
type Sources interface {
	ListWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error)
	ListGroupWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error)
	ListGoals(ctx context.Context, userID string) ([]models.GoalDoc, error)
	ListSchedules(ctx context.Context, userID string) ([]models.ScheduleDoc, error)
	ListFormChecks(ctx context.Context, userID string) ([]models.FormCheckDoc, error)
	ListCoachNotes(ctx context.Context, userID string) ([]models.CoachNoteDoc, error)
	GetProfile(ctx context.Context, userID string) (*models.ProfileDoc, error)
}

// Versioner is implemented by sources that can tell when a user's documents
// last changed. It enables the context cache.
type Versioner interface {
	SourceVersion(ctx context.Context, userID string) (string, error)
}

// RecoveryProvider returns recovery-device scores, or nil when the user has
// no device connected.
type RecoveryProvider interface {
	Scores(ctx context.Context, userID string) (*models.RecoveryScores, error)
}

// Options tunes the service.
type Options struct {
	FetchTimeout time.Duration
	MaxBytes     int
	Reduce       training.ReduceOptions
	Assemble     training.AssembleOptions
	CacheTTL     time.Duration
	CacheSizeMB  int
}

// Service builds training contexts.
type Service struct {
	sources  Sources
	recovery RecoveryProvider
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Manager
	cache    *freecache.Cache
	now      func() time.Time
}

// New creates a Service. recovery and m may be nil. The cache is enabled
// when opts.CacheTTL is positive.
func New(sources Sources, recovery RecoveryProvider, opts Options, log *slog.Logger, m *metrics.Manager) *Service {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	s := &Service{
		sources:  sources,
		recovery: recovery,
		opts:     opts,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSizeMB
		if size <= 0 {
			size = 16
		}
		s.cache = freecache.NewCache(size * 1024 * 1024)
	}
	return s
}

// ValidUserID reports whether id can be used as a document key.
func ValidUserID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > maxUserIDLen {
		return false
	}
	for _, r := range id {
		if r == '/' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// fetched holds everything one fan-out returns.
type fetched struct {
	personal   []models.WorkoutDoc
	group      []models.WorkoutDoc
	goals      []models.GoalDoc
	schedules  []models.ScheduleDoc
	formChecks []models.FormCheckDoc
	coachNotes []models.CoachNoteDoc
	profile    *models.ProfileDoc
	recovery   *models.RecoveryScores
	failed     []string
}

// Build returns the user's training context. Failed sources degrade to empty
// defaults and are listed in PartialSources. An invalid user id or a pipeline
// failure returns the empty context, marked degraded, together with an error.
func (s *Service) Build(ctx context.Context, userID string) (tc *training.TrainingContext, err error) {
	start := s.now()
	defer func() {
		s.metrics.HistBuildDuration.Observe(time.Since(start).Seconds())
	}()

	if !ValidUserID(userID) {
		s.metrics.CounterBuilds.WithLabelValues(metrics.ResultFailed).Inc()
		s.log.Error("training context not built", "user_id", userID, "error", ErrInvalidUser)
		return degraded(), ErrInvalidUser
	}

	cacheKey := s.cacheKey(ctx, userID)
	if cached := s.cached(cacheKey); cached != nil {
		return cached, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAssembly, r)
			s.metrics.CounterBuilds.WithLabelValues(metrics.ResultFailed).Inc()
			s.log.Error("training context not built", "user_id", userID, "error", err)
			tc = degraded()
		}
	}()

	f := s.fetchAll(ctx, userID, true)

	workouts := training.Normalize(f.personal, f.group)
	tc = training.Assemble(training.AssembleInput{
		Workouts:   workouts,
		Aggregates: training.Reduce(workouts, s.now(), s.opts.Reduce),
		Goals:      f.goals,
		Schedules:  f.schedules,
		Recovery:   f.recovery,
		CoachNotes: f.coachNotes,
		FormChecks: f.formChecks,
		Profile:    f.profile,
		Options:    s.opts.Assemble,
	})
	tc.PartialSources = f.failed

	size, err := training.Cap(tc, s.opts.MaxBytes)
	if err != nil {
		s.metrics.CounterBuilds.WithLabelValues(metrics.ResultFailed).Inc()
		s.log.Error("training context not built", "user_id", userID, "error", err)
		return degraded(), fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	s.metrics.HistContextBytes.Observe(float64(size))

	if len(f.failed) > 0 {
		s.metrics.CounterBuilds.WithLabelValues(metrics.ResultPartial).Inc()
		s.log.Warn("training context is partial", "user_id", userID, "failed", strings.Join(f.failed, ","))
		return tc, nil
	}
	s.metrics.CounterBuilds.WithLabelValues(metrics.ResultComplete).Inc()
	s.store(cacheKey, tc)
	return tc, nil
}

// Summary is the admin/analytics view: aggregates and volume over the
// scanned window, without the prompt-oriented slices.
type Summary struct {
	UserID          string              `json:"userId"`
	GeneratedAt     time.Time           `json:"generatedAt"`
	CompletedCount  int                 `json:"completedWorkouts"`
	ScannedWorkouts int                 `json:"scannedWorkouts"`
	Aggregates      training.Aggregates `json:"aggregates"`
	PartialSources  []string            `json:"partialSources,omitempty"`
}

// Summary aggregates the user's workouts only.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	if !ValidUserID(userID) {
		return nil, ErrInvalidUser
	}

	f := s.fetchAll(ctx, userID, false)
	workouts := training.Normalize(f.personal, f.group)
	now := s.now()

	scanned := s.opts.Reduce.ScanLimit
	if scanned <= 0 {
		scanned = training.DefaultScanLimit
	}
	scanned = min(scanned, len(workouts))

	return &Summary{
		UserID:          userID,
		GeneratedAt:     now.UTC(),
		CompletedCount:  len(workouts),
		ScannedWorkouts: scanned,
		Aggregates:      training.Reduce(workouts, now, s.opts.Reduce),
		PartialSources:  f.failed,
	}, nil
}

// fetchAll runs every source fetch in one fan-out. With full unset only the
// two workout sources are read.
func (s *Service) fetchAll(ctx context.Context, userID string, full bool) fetched {
	var f fetched
	g := gather.New(ctx, s.opts.FetchTimeout, s.log.With("user_id", userID))

	gather.Go(g, SourceWorkouts, func(ctx context.Context) ([]models.WorkoutDoc, error) {
		return s.sources.ListWorkouts(ctx, userID)
	}, nil, &f.personal)
	gather.Go(g, SourceGroupWorkouts, func(ctx context.Context) ([]models.WorkoutDoc, error) {
		return s.sources.ListGroupWorkouts(ctx, userID)
	}, nil, &f.group)

	if full {
		gather.Go(g, SourceGoals, func(ctx context.Context) ([]models.GoalDoc, error) {
			return s.sources.ListGoals(ctx, userID)
		}, nil, &f.goals)
		gather.Go(g, SourceSchedules, func(ctx context.Context) ([]models.ScheduleDoc, error) {
			return s.sources.ListSchedules(ctx, userID)
		}, nil, &f.schedules)
		gather.Go(g, SourceFormChecks, func(ctx context.Context) ([]models.FormCheckDoc, error) {
			return s.sources.ListFormChecks(ctx, userID)
		}, nil, &f.formChecks)
		gather.Go(g, SourceCoachNotes, func(ctx context.Context) ([]models.CoachNoteDoc, error) {
			return s.sources.ListCoachNotes(ctx, userID)
		}, nil, &f.coachNotes)
		gather.Go(g, SourceProfile, func(ctx context.Context) (*models.ProfileDoc, error) {
			return s.sources.GetProfile(ctx, userID)
		}, nil, &f.profile)
		if s.recovery != nil {
			gather.Go(g, SourceRecovery, func(ctx context.Context) (*models.RecoveryScores, error) {
				return s.recovery.Scores(ctx, userID)
			}, nil, &f.recovery)
		}
	}

	report := g.Wait()
	for _, name := range report.Failed {
		s.metrics.CounterSourceFailures.WithLabelValues(name).Inc()
	}
	f.failed = report.Failed
	return f
}

// cacheKey returns "" when caching is off or the sources cannot version.
func (s *Service) cacheKey(ctx context.Context, userID string) string {
	if s.cache == nil {
		return ""
	}
	v, ok := s.sources.(Versioner)
	if !ok {
		return ""
	}
	version, err := v.SourceVersion(ctx, userID)
	if err != nil {
		s.log.Warn("source version unavailable, skipping cache", "user_id", userID, "error", err)
		return ""
	}
	if version == "" {
		return ""
	}
	return userID + "\x00" + version
}

func (s *Service) cached(key string) *training.TrainingContext {
	if key == "" {
		return nil
	}
	b, err := s.cache.Get([]byte(key))
	if err != nil {
		s.metrics.CounterCacheMisses.Inc()
		return nil
	}
	var tc training.TrainingContext
	if err := json.Unmarshal(b, &tc); err != nil {
		s.log.Warn("dropping unreadable cache entry", "error", err)
		s.cache.Del([]byte(key))
		return nil
	}
	s.metrics.CounterCacheHits.Inc()
	s.metrics.CounterBuilds.WithLabelValues(metrics.ResultCached).Inc()
	return &tc
}

func (s *Service) store(key string, tc *training.TrainingContext) {
	if key == "" {
		return
	}
	b, err := json.Marshal(tc)
	if err != nil {
		return
	}
	// freecache treats 0 as "never expire".
	ttl := max(int(s.opts.CacheTTL.Seconds()), 1)
	if err := s.cache.Set([]byte(key), b, ttl); err != nil {
		s.log.Warn("caching training context", "error", err)
	}
}

func degraded() *training.TrainingContext {
	tc := training.EmptyContext()
	tc.Degraded = true
	return tc
}

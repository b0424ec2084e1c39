package contextsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/trainctx/internal/metrics"
	"github.com/claude/trainctx/internal/models"
	"github.com/claude/trainctx/internal/training"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var svcNow = time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)

// fakeSources serves canned documents; errs fails the named source.
type fakeSources struct {
	workouts []models.WorkoutDoc
	group    []models.WorkoutDoc
	goals    []models.GoalDoc
	profile  *models.ProfileDoc
	errs     map[string]error
	calls    atomic.Int32
}

func (f *fakeSources) err(name string) error {
	f.calls.Add(1)
	return f.errs[name]
}

func (f *fakeSources) ListWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error) {
	return f.workouts, f.err(SourceWorkouts)
}
func (f *fakeSources) ListGroupWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error) {
	return f.group, f.err(SourceGroupWorkouts)
}
func (f *fakeSources) ListGoals(ctx context.Context, userID string) ([]models.GoalDoc, error) {
	return f.goals, f.err(SourceGoals)
}
func (f *fakeSources) ListSchedules(ctx context.Context, userID string) ([]models.ScheduleDoc, error) {
	return []models.ScheduleDoc{{ID: "s1", Name: "Upper/Lower", Status: "active"}}, f.err(SourceSchedules)
}
func (f *fakeSources) ListFormChecks(ctx context.Context, userID string) ([]models.FormCheckDoc, error) {
	return nil, f.err(SourceFormChecks)
}
func (f *fakeSources) ListCoachNotes(ctx context.Context, userID string) ([]models.CoachNoteDoc, error) {
	return []models.CoachNoteDoc{{ID: "n1", Text: "Keep elbows tucked"}}, f.err(SourceCoachNotes)
}
func (f *fakeSources) GetProfile(ctx context.Context, userID string) (*models.ProfileDoc, error) {
	return f.profile, f.err(SourceProfile)
}

// versionedSources adds a settable source version.
type versionedSources struct {
	*fakeSources
	version string
}

func (v *versionedSources) SourceVersion(ctx context.Context, userID string) (string, error) {
	return v.version, nil
}

type recoveryFunc func(ctx context.Context, userID string) (*models.RecoveryScores, error)

func (f recoveryFunc) Scores(ctx context.Context, userID string) (*models.RecoveryScores, error) {
	return f(ctx, userID)
}

func benchWorkouts(t *testing.T) []models.WorkoutDoc {
	t.Helper()
	raw := `[
		{"id":"A","date":"2024-06-17","status":"completed","exercises":[
			{"name":"Bench Press","sets":[{"actualWeight":"185","actualReps":"5","rpe":8}]}]},
		{"id":"B","date":"2024-06-10","status":"completed","exercises":[
			{"name":"Bench Press","sets":[{"actualWeight":"135","actualReps":"5","rpe":6,"painLevel":3}]}]}
	]`
	var docs []models.WorkoutDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		t.Fatal(err)
	}
	return docs
}

func newTestService(sources Sources, rec RecoveryProvider, opts Options) (*Service, *metrics.Manager) {
	m := metrics.NewTestManager()
	s := New(sources, rec, opts, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	s.now = func() time.Time { return svcNow }
	return s, m
}

func scores(readiness float64) *models.RecoveryScores {
	return &models.RecoveryScores{Latest: models.DailyScores{Readiness: &readiness}}
}

// TestBuildComplete verifies every source lands in the context.
func TestBuildComplete(t *testing.T) {
	src := &fakeSources{
		workouts: benchWorkouts(t),
		goals:    []models.GoalDoc{{ID: "g", Status: "active", Lift: "Bench Press", CurrentValue: models.Num(185), TargetValue: models.Num(225)}},
		profile:  &models.ProfileDoc{UserID: "u1", DisplayName: "Alex"},
	}
	rec := recoveryFunc(func(ctx context.Context, userID string) (*models.RecoveryScores, error) {
		return scores(77), nil
	})
	svc, m := newTestService(src, rec, Options{FetchTimeout: time.Second})

	tc, err := svc.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := tc.MaxLifts["Bench Press"]; got.E1RM != 216 {
		t.Errorf("e1rm = %v, want 216", got.E1RM)
	}
	if p := tc.PainHistory["Bench Press"]; p.LastDaysAgo == nil || *p.LastDaysAgo != 10 || p.RecentCount != 1 {
		t.Errorf("pain = %+v, want lastDaysAgo 10 recentCount 1", p)
	}
	if tc.OuraData == nil || *tc.OuraData.Latest.Readiness != 77 {
		t.Errorf("ouraData = %+v, want readiness 77", tc.OuraData)
	}
	if len(tc.Goals) != 1 || len(tc.Schedules) != 1 || len(tc.CoachNotes) != 1 || tc.Profile == nil {
		t.Errorf("aux sources missing: goals %d schedules %d notes %d profile %v",
			len(tc.Goals), len(tc.Schedules), len(tc.CoachNotes), tc.Profile)
	}
	if len(tc.PartialSources) != 0 || tc.Degraded {
		t.Errorf("PartialSources = %v Degraded = %v, want clean build", tc.PartialSources, tc.Degraded)
	}
	if got := testutil.ToFloat64(m.CounterBuilds.WithLabelValues(metrics.ResultComplete)); got != 1 {
		t.Errorf("complete builds = %v, want 1", got)
	}
}

// TestBuildRecoveryFailure verifies a failing recovery fetch leaves ouraData
// null and everything else populated.
func TestBuildRecoveryFailure(t *testing.T) {
	src := &fakeSources{
		workouts: benchWorkouts(t),
		goals:    []models.GoalDoc{{ID: "g", Status: "active", Lift: "Squat"}},
	}
	rec := recoveryFunc(func(ctx context.Context, userID string) (*models.RecoveryScores, error) {
		return nil, errors.New("oura api: 503")
	})
	svc, m := newTestService(src, rec, Options{FetchTimeout: time.Second})

	tc, err := svc.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if tc.OuraData != nil {
		t.Errorf("ouraData = %+v, want nil", tc.OuraData)
	}
	if len(tc.RecentWorkouts) != 2 || len(tc.Goals) != 1 || len(tc.MaxLifts) != 1 {
		t.Errorf("context incomplete: workouts %d goals %d maxLifts %d",
			len(tc.RecentWorkouts), len(tc.Goals), len(tc.MaxLifts))
	}
	if len(tc.PartialSources) != 1 || tc.PartialSources[0] != SourceRecovery {
		t.Errorf("PartialSources = %v, want [recovery]", tc.PartialSources)
	}

	b, _ := json.Marshal(tc)
	var decoded map[string]any
	json.Unmarshal(b, &decoded)
	if v, ok := decoded["ouraData"]; !ok || v != nil {
		t.Errorf("encoded ouraData = %v (present %v), want null", v, ok)
	}
	if got := testutil.ToFloat64(m.CounterSourceFailures.WithLabelValues(SourceRecovery)); got != 1 {
		t.Errorf("recovery failures = %v, want 1", got)
	}
}

// TestBuildRecoveryTimeout verifies a hung provider is cut off by the fetch timeout.
func TestBuildRecoveryTimeout(t *testing.T) {
	rec := recoveryFunc(func(ctx context.Context, userID string) (*models.RecoveryScores, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	svc, _ := newTestService(&fakeSources{workouts: benchWorkouts(t)}, rec, Options{FetchTimeout: 20 * time.Millisecond})

	tc, err := svc.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tc.OuraData != nil || len(tc.RecentWorkouts) != 2 {
		t.Errorf("ouraData = %v workouts = %d, want nil and 2", tc.OuraData, len(tc.RecentWorkouts))
	}
}

// TestBuildWorkoutSourceFailure verifies a failed group fetch degrades to the
// personal workouts alone.
func TestBuildWorkoutSourceFailure(t *testing.T) {
	src := &fakeSources{
		workouts: benchWorkouts(t),
		errs:     map[string]error{SourceGroupWorkouts: errors.New("index missing")},
	}
	svc, _ := newTestService(src, nil, Options{})

	tc, err := svc.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tc.RecentWorkouts) != 2 {
		t.Errorf("RecentWorkouts = %d, want 2", len(tc.RecentWorkouts))
	}
	if len(tc.PartialSources) != 1 || tc.PartialSources[0] != SourceGroupWorkouts {
		t.Errorf("PartialSources = %v, want [group_workouts]", tc.PartialSources)
	}
}

// TestBuildInvalidUser verifies an unusable user id returns the empty,
// degraded context and ErrInvalidUser without touching the sources.
func TestBuildInvalidUser(t *testing.T) {
	src := &fakeSources{}
	svc, _ := newTestService(src, nil, Options{})

	for _, id := range []string{"", "  ", "a/b", "bad\nid"} {
		tc, err := svc.Build(context.Background(), id)
		if !errors.Is(err, ErrInvalidUser) {
			t.Errorf("Build(%q) err = %v, want ErrInvalidUser", id, err)
		}
		if tc == nil || !tc.Degraded || tc.RecentWorkouts == nil || tc.Goals == nil {
			t.Errorf("Build(%q) = %+v, want empty degraded context", id, tc)
		}
	}
	if n := src.calls.Load(); n != 0 {
		t.Errorf("sources called %d times, want 0", n)
	}
}

// TestBuildCancelled verifies a cancelled request still returns a context.
func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, _ := newTestService(&fakeSources{workouts: benchWorkouts(t)}, nil, Options{})

	tc, err := svc.Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tc.PartialSources) != 7 {
		t.Errorf("PartialSources = %v, want all 7 document sources", tc.PartialSources)
	}
}

// TestBuildCache verifies complete builds are served from cache until the
// source version moves, and that cached output matches a fresh build.
func TestBuildCache(t *testing.T) {
	src := &versionedSources{fakeSources: &fakeSources{workouts: benchWorkouts(t)}, version: "v1"}
	svc, m := newTestService(src, nil, Options{CacheTTL: time.Minute, CacheSizeMB: 1})
	ctx := context.Background()

	first, err := svc.Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	calls := src.calls.Load()

	second, err := svc.Build(ctx, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if src.calls.Load() != calls {
		t.Error("cached build hit the sources")
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cached context differs:\n%s\n%s", a, b)
	}
	if got := testutil.ToFloat64(m.CounterCacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	src.version = "v2"
	if _, err := svc.Build(ctx, "u1"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if src.calls.Load() == calls {
		t.Error("new source version served from cache")
	}
}

// TestBuildPartialNotCached verifies partial contexts are rebuilt next time.
func TestBuildPartialNotCached(t *testing.T) {
	src := &versionedSources{
		fakeSources: &fakeSources{errs: map[string]error{SourceGoals: errors.New("timeout")}},
		version:     "v1",
	}
	svc, _ := newTestService(src, nil, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	svc.Build(ctx, "u1")
	calls := src.calls.Load()
	svc.Build(ctx, "u1")

	if src.calls.Load() == calls {
		t.Error("partial context was cached")
	}
}

// TestBuildCapsSize verifies the configured byte budget is applied.
func TestBuildCapsSize(t *testing.T) {
	var docs []models.WorkoutDoc
	for i := 0; i < 12; i++ {
		d := models.WorkoutDoc{
			ID:     string(rune('a' + i)),
			Name:   "Full body session with a long descriptive name",
			Date:   models.NewFlexDate(svcNow.AddDate(0, 0, -i)),
			Status: models.StatusCompleted,
			Exercises: []models.ExerciseDoc{
				{Name: "Squat", Sets: []models.SetDoc{{ActualWeight: "100", ActualReps: "5"}}},
			},
		}
		docs = append(docs, d)
	}
	svc, _ := newTestService(&fakeSources{workouts: docs}, nil, Options{MaxBytes: 1000})

	tc, err := svc.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !tc.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(tc.RecentWorkouts) != training.DefaultDetailCount {
		t.Errorf("RecentWorkouts = %d, want %d", len(tc.RecentWorkouts), training.DefaultDetailCount)
	}
}

// TestSummary verifies the admin summary aggregates workouts only.
func TestSummary(t *testing.T) {
	svc, _ := newTestService(&fakeSources{workouts: benchWorkouts(t)}, nil, Options{})

	s, err := svc.Summary(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.CompletedCount != 2 || s.ScannedWorkouts != 2 {
		t.Errorf("counts = %d/%d, want 2/2", s.CompletedCount, s.ScannedWorkouts)
	}
	if got := s.Aggregates.Volume["Bench Press"]; got.Sets != 2 || got.Tonnage != 1600 {
		t.Errorf("volume = %+v, want 2 sets 1600 tonnage", got)
	}
	if got := s.Aggregates.RPEAverages["Bench Press"]; got != 7 {
		t.Errorf("rpe = %v, want 7", got)
	}

	if _, err := svc.Summary(context.Background(), ""); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("Summary(\"\") err = %v, want ErrInvalidUser", err)
	}
}

package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/trainctx/internal/kvstore"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var gateNow = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func testLimiter(store KeyValueStore, limits Limits) *Limiter {
	l := New(store, limits, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewTestManager())
	l.now = func() time.Time { return gateNow }
	return l
}

func storedCounter(t *testing.T, store KeyValueStore, scope string) Counter {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), "ratelimit:"+scope+":counter")
	if err != nil || !ok {
		t.Fatalf("counter for %s: ok %v err %v", scope, ok, err)
	}
	var c Counter
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("decoding counter: %v", err)
	}
	return c
}

func putCounter(t *testing.T, store KeyValueStore, scope string, c Counter) {
	t.Helper()
	b, _ := json.Marshal(c)
	if err := store.Set(context.Background(), "ratelimit:"+scope+":counter", string(b)); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk full")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("disk full") }
func (failingStore) Remove(context.Context, string) error      { return errors.New("disk full") }

// TestCheckResetsElapsedWindow verifies an expired hourly window is zeroed
// and re-armed before the limit is evaluated.
func TestCheckResetsElapsedWindow(t *testing.T) {
	store := kvstore.NewMemoryStore()
	putCounter(t, store, "u1", Counter{
		Count:          25,
		ResetTime:      gateNow.Add(-time.Minute),
		DailyCount:     30,
		DailyResetTime: gateNow.Add(5 * time.Hour),
	})
	g := testLimiter(store, DefaultLimits()).For("u1")

	if got := g.Check(context.Background()); got != StatusOK {
		t.Errorf("Check = %s, want OK", got)
	}

	c := storedCounter(t, store, "u1")
	if c.Count != 0 {
		t.Errorf("Count = %d, want 0", c.Count)
	}
	if !c.ResetTime.Equal(gateNow.Add(time.Hour)) {
		t.Errorf("ResetTime = %v, want %v", c.ResetTime, gateNow.Add(time.Hour))
	}
	if c.DailyCount != 30 {
		t.Errorf("DailyCount = %d, want 30 (window still open)", c.DailyCount)
	}
}

// TestCheckOverage verifies reaching either limit flips the status and cost.
func TestCheckOverage(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := testLimiter(store, Limits{Hourly: 3, Daily: 100, OverageMultiplier: 2.5})
	g := l.For("u1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		g.Increment(ctx)
	}
	if got := g.Check(ctx); got != StatusOK {
		t.Errorf("after 2 requests Check = %s, want OK", got)
	}
	if got := g.CurrentCost(ctx); got != 1 {
		t.Errorf("CurrentCost = %v, want 1", got)
	}

	g.Increment(ctx)
	if got := g.Check(ctx); got != StatusOverage {
		t.Errorf("after 3 requests Check = %s, want OVERAGE", got)
	}
	if got := g.CurrentCost(ctx); got != 2.5 {
		t.Errorf("CurrentCost = %v, want 2.5", got)
	}

	if got := testutil.ToFloat64(l.metrics.CounterGateChecks.WithLabelValues(string(StatusOverage))); got != 2 {
		t.Errorf("overage checks = %v, want 2", got)
	}
}

// TestDailyLimit verifies the daily window triggers overage on its own.
func TestDailyLimit(t *testing.T) {
	store := kvstore.NewMemoryStore()
	putCounter(t, store, "u1", Counter{
		Count:          0,
		ResetTime:      gateNow.Add(30 * time.Minute),
		DailyCount:     10,
		DailyResetTime: gateNow.Add(time.Hour),
	})
	g := testLimiter(store, Limits{Hourly: 5, Daily: 10, OverageMultiplier: 2}).For("u1")

	if got := g.Check(context.Background()); got != StatusOverage {
		t.Errorf("Check = %s, want OVERAGE", got)
	}
}

// TestUnlimited verifies non-positive limits never report overage.
func TestUnlimited(t *testing.T) {
	g := testLimiter(kvstore.NewMemoryStore(), Limits{}).For("u1")
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		g.Increment(ctx)
	}
	if got := g.Check(ctx); got != StatusOK {
		t.Errorf("Check = %s, want OK", got)
	}
	if got := g.CurrentCost(ctx); got != 1 {
		t.Errorf("CurrentCost = %v, want 1", got)
	}
}

// TestScopesIndependent verifies users do not share counters.
func TestScopesIndependent(t *testing.T) {
	l := testLimiter(kvstore.NewMemoryStore(), Limits{Hourly: 1, Daily: 10, OverageMultiplier: 2})
	ctx := context.Background()

	l.For("u1").Increment(ctx)

	if got := l.For("u1").Check(ctx); got != StatusOverage {
		t.Errorf("u1 Check = %s, want OVERAGE", got)
	}
	if got := l.For("u2").Check(ctx); got != StatusOK {
		t.Errorf("u2 Check = %s, want OK", got)
	}
}

// TestFailOpen verifies a broken store never blocks or raises the cost.
func TestFailOpen(t *testing.T) {
	l := testLimiter(failingStore{}, Limits{Hourly: 1, Daily: 1, OverageMultiplier: 3})
	g := l.For("u1")
	ctx := context.Background()

	g.Increment(ctx)
	if got := g.Check(ctx); got != StatusOK {
		t.Errorf("Check = %s, want OK", got)
	}
	if got := g.CurrentCost(ctx); got != 1 {
		t.Errorf("CurrentCost = %v, want 1", got)
	}
	if g.ApplyResetSignal(ctx, gateNow) {
		t.Error("ApplyResetSignal = true with a failing store")
	}
	snap := g.Snapshot(ctx)
	if !snap.Degraded || snap.Status != StatusOK {
		t.Errorf("Snapshot = %+v, want degraded OK", snap)
	}
	if got := testutil.ToFloat64(l.metrics.CounterGateStoreErrs); got == 0 {
		t.Error("store errors not counted")
	}
}

// TestFailOpenClosedStore verifies a closed backend fails open too.
func TestFailOpenClosedStore(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.Close()
	g := testLimiter(store, Limits{Hourly: 1}).For("u1")

	if got := g.Check(context.Background()); got != StatusOK {
		t.Errorf("Check = %s, want OK", got)
	}
}

// TestCorruptCounter verifies an unreadable stored value starts a fresh counter.
func TestCorruptCounter(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.Set(context.Background(), "ratelimit:u1:counter", "{not json")
	g := testLimiter(store, Limits{Hourly: 2}).For("u1")

	g.Increment(context.Background())

	if c := storedCounter(t, store, "u1"); c.Count != 1 {
		t.Errorf("Count = %d, want 1", c.Count)
	}
}

// TestApplyResetSignalOnce verifies a reset signal zeroes counters exactly
// once and a newer signal applies again.
func TestApplyResetSignalOnce(t *testing.T) {
	store := kvstore.NewMemoryStore()
	g := testLimiter(store, Limits{Hourly: 2, Daily: 10, OverageMultiplier: 2}).For("u1")
	ctx := context.Background()

	g.Increment(ctx)
	g.Increment(ctx)
	if got := g.Check(ctx); got != StatusOverage {
		t.Fatalf("Check = %s, want OVERAGE", got)
	}

	signal := gateNow.Add(-10 * time.Minute)
	if !g.ApplyResetSignal(ctx, signal) {
		t.Fatal("first ApplyResetSignal = false, want true")
	}
	if got := g.Check(ctx); got != StatusOK {
		t.Errorf("Check after reset = %s, want OK", got)
	}

	g.Increment(ctx)
	if g.ApplyResetSignal(ctx, signal) {
		t.Error("repeated signal applied again")
	}
	if c := storedCounter(t, store, "u1"); c.Count != 1 || c.DailyCount != 1 {
		t.Errorf("counter = %+v, want 1/1 after the repeated signal", c)
	}

	if !g.ApplyResetSignal(ctx, signal.Add(time.Minute)) {
		t.Error("newer signal not applied")
	}
	if c := storedCounter(t, store, "u1"); c.Count != 0 || c.DailyCount != 0 {
		t.Errorf("counter = %+v, want zeroed", c)
	}

	if g.ApplyResetSignal(ctx, time.Time{}) {
		t.Error("zero signal applied")
	}
}

// TestSnapshot verifies the exposed counters and limits.
func TestSnapshot(t *testing.T) {
	g := testLimiter(kvstore.NewMemoryStore(), DefaultLimits()).For("u1")
	ctx := context.Background()
	g.Increment(ctx)
	g.Increment(ctx)

	s := g.Snapshot(ctx)

	if s.Scope != "u1" || s.Status != StatusOK || s.Cost != 1 {
		t.Errorf("Snapshot = %+v", s)
	}
	if s.Hourly.Count != 2 || s.Hourly.Limit != 20 || s.Daily.Count != 2 || s.Daily.Limit != 100 {
		t.Errorf("windows = %+v / %+v", s.Hourly, s.Daily)
	}
	if !s.Daily.ResetTime.Equal(gateNow.Add(24 * time.Hour)) {
		t.Errorf("daily ResetTime = %v, want %v", s.Daily.ResetTime, gateNow.Add(24*time.Hour))
	}
}

// TestSQLiteBackedGate verifies the gate state survives a process restart.
func TestSQLiteBackedGate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := kvstore.OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	testLimiter(store, DefaultLimits()).For("u1").Increment(ctx)
	store.Close()

	store, err = kvstore.OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	if s := testLimiter(store, DefaultLimits()).For("u1").Snapshot(ctx); s.Hourly.Count != 1 {
		t.Errorf("Hourly.Count = %d, want 1", s.Hourly.Count)
	}
}

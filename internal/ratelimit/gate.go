// Package ratelimit implements the advisory hourly/daily request gate.
// Counters reset lazily on the next read once their window has passed.
// Overage never blocks; it only raises the credit cost of a request.
// Every storage failure fails open.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/trainctx/internal/metrics"
)

// KeyValueStore persists gate state. Get reports absence with ok == false.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Status is the outcome of Check.
type Status string

const (
	StatusOK      Status = "OK"
	StatusOverage Status = "OVERAGE"
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// Limits configures a gate. A limit <= 0 disables that window.
type Limits struct {
	Hourly            int
	Daily             int
	OverageMultiplier float64
}

// DefaultLimits returns 20/hour, 100/day and a 2x overage cost.
func DefaultLimits() Limits {
	return Limits{Hourly: 20, Daily: 100, OverageMultiplier: 2.0}
}

// Counter is the persisted state of one scope.
type Counter struct {
	Count          int       `json:"count"`
	ResetTime      time.Time `json:"resetTime"`
	DailyCount     int       `json:"dailyCount"`
	DailyResetTime time.Time `json:"dailyResetTime"`
}

// roll resets every window that has elapsed and reports whether anything changed.
func (c *Counter) roll(now time.Time) bool {
	changed := false
	if c.ResetTime.IsZero() || now.After(c.ResetTime) {
		c.Count = 0
		c.ResetTime = now.Add(hourWindow)
		changed = true
	}
	if c.DailyResetTime.IsZero() || now.After(c.DailyResetTime) {
		c.DailyCount = 0
		c.DailyResetTime = now.Add(dayWindow)
		changed = true
	}
	return changed
}

// Limiter hands out per-scope gates over one store.
type Limiter struct {
	store   KeyValueStore
	limits  Limits
	log     *slog.Logger
	metrics *metrics.Manager
	now     func() time.Time

	// Serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// New creates a Limiter. m may be nil.
func New(store KeyValueStore, limits Limits, log *slog.Logger, m *metrics.Manager) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{store: store, limits: limits, log: log, metrics: m, now: time.Now}
}

// Limits returns the configured limits.
func (l *Limiter) Limits() Limits { return l.limits }

// For returns the gate for a scope, normally a user id.
func (l *Limiter) For(scope string) *Gate {
	return &Gate{l: l, scope: scope}
}

// Gate is the rate gate of one scope.
type Gate struct {
	l     *Limiter
	scope string
}

func (g *Gate) counterKey() string { return "ratelimit:" + g.scope + ":counter" }
func (g *Gate) markerKey() string  { return "ratelimit:" + g.scope + ":last_reset" }

// Check resets elapsed windows, persists the result and reports whether
// either window has reached its limit.
func (g *Gate) Check(ctx context.Context) Status {
	g.l.mu.Lock()
	defer g.l.mu.Unlock()

	c, ok := g.current(ctx)
	if !ok {
		return g.record(StatusOK)
	}
	return g.record(g.evaluate(c))
}

// Increment records one successful request against both windows.
func (g *Gate) Increment(ctx context.Context) {
	g.l.mu.Lock()
	defer g.l.mu.Unlock()

	c, ok := g.load(ctx)
	if !ok {
		return
	}
	c.roll(g.l.now())
	c.Count++
	c.DailyCount++
	g.save(ctx, c)
}

// CurrentCost returns 1, or the overage multiplier once a window is full.
func (g *Gate) CurrentCost(ctx context.Context) float64 {
	return g.l.cost(g.Check(ctx))
}

// ApplyResetSignal zeroes both counters when signalAt is newer than the last
// signal this scope observed. It reports whether a reset happened.
func (g *Gate) ApplyResetSignal(ctx context.Context, signalAt time.Time) bool {
	if signalAt.IsZero() {
		return false
	}

	g.l.mu.Lock()
	defer g.l.mu.Unlock()

	raw, found, err := g.l.store.Get(ctx, g.markerKey())
	if err != nil {
		g.storeFailed("reading reset marker", err)
		return false
	}
	if found {
		if last, err := time.Parse(time.RFC3339Nano, raw); err == nil && !signalAt.After(last) {
			return false
		}
	}

	var c Counter
	c.roll(g.l.now())
	if !g.save(ctx, c) {
		return false
	}
	if err := g.l.store.Set(ctx, g.markerKey(), signalAt.UTC().Format(time.RFC3339Nano)); err != nil {
		g.storeFailed("writing reset marker", err)
	}
	g.l.log.Info("rate gate reset by signal", "scope", g.scope, "signal_at", signalAt)
	return true
}

// Window is one counter as exposed by Snapshot.
type Window struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"resetTime"`
}

// Snapshot is the externally visible gate state.
type Snapshot struct {
	Scope    string  `json:"scope"`
	Status   Status  `json:"status"`
	Cost     float64 `json:"cost"`
	Hourly   Window  `json:"hourly"`
	Daily    Window  `json:"daily"`
	Degraded bool    `json:"degraded,omitempty"`
}

// Snapshot returns the current counters after lazy resets. When the store
// fails the snapshot is marked degraded and reports OK.
func (g *Gate) Snapshot(ctx context.Context) Snapshot {
	g.l.mu.Lock()
	defer g.l.mu.Unlock()

	s := Snapshot{
		Scope:  g.scope,
		Status: StatusOK,
		Cost:   1,
		Hourly: Window{Limit: g.l.limits.Hourly},
		Daily:  Window{Limit: g.l.limits.Daily},
	}
	c, ok := g.current(ctx)
	if !ok {
		s.Degraded = true
		return s
	}
	s.Status = g.evaluate(c)
	s.Cost = g.l.cost(s.Status)
	s.Hourly.Count, s.Hourly.ResetTime = c.Count, c.ResetTime
	s.Daily.Count, s.Daily.ResetTime = c.DailyCount, c.DailyResetTime
	return s
}

// current loads the counter and applies lazy resets. Caller holds the lock.
func (g *Gate) current(ctx context.Context) (Counter, bool) {
	c, ok := g.load(ctx)
	if !ok {
		return Counter{}, false
	}
	if c.roll(g.l.now()) {
		// A failed write still leaves a correct in-memory view.
		g.save(ctx, c)
	}
	return c, true
}

func (g *Gate) evaluate(c Counter) Status {
	lim := g.l.limits
	if (lim.Hourly > 0 && c.Count >= lim.Hourly) || (lim.Daily > 0 && c.DailyCount >= lim.Daily) {
		return StatusOverage
	}
	return StatusOK
}

func (l *Limiter) cost(s Status) float64 {
	if s == StatusOverage && l.limits.OverageMultiplier > 0 {
		return l.limits.OverageMultiplier
	}
	return 1
}

func (g *Gate) load(ctx context.Context) (Counter, bool) {
	raw, found, err := g.l.store.Get(ctx, g.counterKey())
	if err != nil {
		g.storeFailed("reading counter", err)
		return Counter{}, false
	}
	var c Counter
	if !found {
		return c, true
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		g.l.log.Warn("discarding unreadable rate counter", "scope", g.scope, "error", err)
		return Counter{}, true
	}
	return c, true
}

func (g *Gate) save(ctx context.Context, c Counter) bool {
	b, err := json.Marshal(c)
	if err != nil {
		g.storeFailed("encoding counter", err)
		return false
	}
	if err := g.l.store.Set(ctx, g.counterKey(), string(b)); err != nil {
		g.storeFailed("writing counter", err)
		return false
	}
	return true
}

func (g *Gate) storeFailed(op string, err error) {
	g.l.log.Warn("rate gate storage failed, failing open", "scope", g.scope, "op", op, "error", fmt.Errorf("%s: %w", op, err))
	if g.l.metrics != nil {
		g.l.metrics.CounterGateStoreErrs.Inc()
	}
}

func (g *Gate) record(s Status) Status {
	if g.l.metrics != nil {
		g.l.metrics.CounterGateChecks.WithLabelValues(string(s)).Inc()
	}
	return s
}

// Package gather runs a batch of independent fetches concurrently and
// substitutes a fallback for any fetch that fails, times out or panics.
// A gather never fails as a whole; failures are logged and reported.
package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Group is one fan-out. Create with New, add tasks with Go, then Wait.
type Group struct {
	ctx     context.Context
	timeout time.Duration
	log     *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	failed []string
}

// Report lists the tasks that fell back.
type Report struct {
	Failed []string
}

// OK reports whether every task succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// HasFailed reports whether the named task fell back.
func (r Report) HasFailed(name string) bool {
	for _, f := range r.Failed {
		if f == name {
			return true
		}
	}
	return false
}

// New creates a Group whose tasks inherit ctx and each get at most timeout.
// A timeout <= 0 leaves only the parent deadline.
func New(ctx context.Context, timeout time.Duration, log *slog.Logger) *Group {
	if log == nil {
		log = slog.Default()
	}
	return &Group{ctx: ctx, timeout: timeout, log: log}
}

// Go starts fetch in its own goroutine. When it returns, *dst holds either
// the fetched value or fallback. dst must not be read before Wait returns.
// A fetch still running at its deadline is abandoned: the task falls back
// and its late result is discarded.
func Go[T any](g *Group, name string, fetch func(ctx context.Context) (T, error), fallback T, dst *T) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := g.taskContext()
		defer cancel()

		v, err := run(ctx, fetch)
		if err == nil {
			*dst = v
			return
		}

		*dst = fallback
		g.fail(name, err)
	}()
}

type result[T any] struct {
	v   T
	err error
}

func run[T any](ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		var r result[T]
		defer func() {
			if p := recover(); p != nil {
				r = result[T]{err: fmt.Errorf("panic: %v", p)}
			}
			done <- r
		}()
		r.v, r.err = fetch(ctx)
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (g *Group) taskContext() (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(g.ctx, g.timeout)
	}
	return context.WithCancel(g.ctx)
}

func (g *Group) fail(name string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelInfo
	}
	g.log.Log(context.Background(), level, "fetch failed, using fallback", "source", name, "error", err)

	g.mu.Lock()
	g.failed = append(g.failed, name)
	g.mu.Unlock()
}

// Wait blocks until every task has settled.
func (g *Group) Wait() Report {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	failed := append([]string(nil), g.failed...)
	sort.Strings(failed)
	return Report{Failed: failed}
}

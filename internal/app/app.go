// Package app wires the configured stores, rate gate and context service
// shared by the server and MCP binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/trainctx/internal/config"
	"github.com/claude/trainctx/internal/contextsvc"
	"github.com/claude/trainctx/internal/kvstore"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/claude/trainctx/internal/recovery"
	"github.com/claude/trainctx/internal/storage"
	"github.com/claude/trainctx/internal/training"
)

var _ contextsvc.Sources = (*storage.DB)(nil)

// App holds the long-lived components built from a Config.
type App struct {
	DB       *storage.DB
	KV       kvstore.Store
	Gates    *ratelimit.Limiter
	Contexts *contextsvc.Service
	Metrics  *metrics.Manager

	log *slog.Logger
}

// Open connects the document store and the rate gate backend.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Manager, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := storage.New(ctx, cfg.Database.DSN(), log)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}
	db.Limits = storage.Limits{
		Workouts:      cfg.Fetch.WorkoutLimit,
		GroupWorkouts: cfg.Fetch.GroupLimit,
		FormChecks:    cfg.Fetch.FormCheckLimit,
		CoachNotes:    cfg.Fetch.CoachNoteLimit,
	}

	kv, err := kvstore.Open(ctx, KVOptions(cfg.RateGate))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening rate gate store: %w", err)
	}

	var rec contextsvc.RecoveryProvider
	if cfg.Recovery.BaseURL != "" {
		rec = recovery.NewClient(cfg.Recovery.BaseURL, cfg.Recovery.Token, cfg.Recovery.Timeout)
	}

	return &App{
		DB:       db,
		KV:       kv,
		Gates:    ratelimit.New(kv, GateLimits(cfg.RateGate), log, m),
		Contexts: contextsvc.New(db, rec, ServiceOptions(cfg), log, m),
		Metrics:  m,
		log:      log,
	}, nil
}

// Close releases the rate gate store and the database pool.
func (a *App) Close() {
	if err := a.KV.Close(); err != nil {
		a.log.Warn("closing rate gate store", "error", err)
	}
	a.DB.Close()
}

// KVOptions maps the rate gate config onto store options.
func KVOptions(c config.RateGateConfig) kvstore.Options {
	return kvstore.Options{
		Backend:       c.Backend,
		SQLiteDir:     c.SQLiteDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
	}
}

// GateLimits maps the rate gate config onto limits.
func GateLimits(c config.RateGateConfig) ratelimit.Limits {
	return ratelimit.Limits{Hourly: c.Hourly, Daily: c.Daily, OverageMultiplier: c.OverageMultiplier}
}

// ServiceOptions maps the context, cache and fetch config onto service options.
func ServiceOptions(cfg *config.Config) contextsvc.Options {
	return contextsvc.Options{
		FetchTimeout: cfg.Context.FetchTimeout,
		MaxBytes:     cfg.Context.MaxBytes,
		Reduce: training.ReduceOptions{
			ScanLimit:      cfg.Context.ScanLimit,
			NormalizeNames: cfg.Context.NormalizeExerciseNames,
		},
		Assemble: training.AssembleOptions{
			DetailCount:  cfg.Context.DetailWorkouts,
			SummaryCount: cfg.Context.SummaryWorkouts,
			CardioLimit:  cfg.Context.CardioWorkouts,
		},
		CacheTTL:    cfg.Cache.TTL,
		CacheSizeMB: cfg.Cache.SizeMB,
	}
}

package mcp

import (
	"context"

	"github.com/claude/trainctx/internal/contextsvc"
	"github.com/claude/trainctx/internal/models"
	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/claude/trainctx/internal/training"
)

// DataSource abstracts where MCP tools get their data. Local (in-process
// service) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	TrainingContext(ctx context.Context, userID string) (*training.TrainingContext, error)
	Summary(ctx context.Context, userID string) (*contextsvc.Summary, error)
	RateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error)
	IncrementRateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error)
}

// ProfileReader supplies the rate gate reset signal.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.ProfileDoc, error)
}

// Local serves tools from an in-process context service and rate gate.
type Local struct {
	svc      *contextsvc.Service
	gates    *ratelimit.Limiter
	profiles ProfileReader
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a Local data source. profiles may be nil.
func NewLocal(svc *contextsvc.Service, gates *ratelimit.Limiter, profiles ProfileReader) *Local {
	return &Local{svc: svc, gates: gates, profiles: profiles}
}

func (l *Local) TrainingContext(ctx context.Context, userID string) (*training.TrainingContext, error) {
	return l.svc.Build(ctx, userID)
}

func (l *Local) Summary(ctx context.Context, userID string) (*contextsvc.Summary, error) {
	return l.svc.Summary(ctx, userID)
}

// RateGate applies the profile reset signal, then reports the gate.
func (l *Local) RateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error) {
	return l.gateFor(ctx, userID).Snapshot(ctx), nil
}

// IncrementRateGate applies the profile reset signal before counting.
func (l *Local) IncrementRateGate(ctx context.Context, userID string) (ratelimit.Snapshot, error) {
	gate := l.gateFor(ctx, userID)
	gate.Increment(ctx)
	return gate.Snapshot(ctx), nil
}

func (l *Local) gateFor(ctx context.Context, userID string) *ratelimit.Gate {
	gate := l.gates.For(userID)
	if l.profiles != nil {
		if p, err := l.profiles.GetProfile(ctx, userID); err == nil && p != nil && p.RateLimitResetAt.Valid {
			gate.ApplyResetSignal(ctx, p.RateLimitResetAt.Time)
		}
	}
	return gate
}

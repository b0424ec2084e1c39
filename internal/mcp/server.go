package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
// It is empty when none was set.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("trainctx", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("trainctx serves a compact training context for a lifter: recent workouts, estimated maxes, pain history, RPE averages, goals, schedules, recovery scores and coach notes. Each get_training_context call is metered by a rate gate and reports its credit cost."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetTrainingContext, Handler: h.getTrainingContext},
		server.ServerTool{Tool: toolGetTrainingSummary, Handler: h.getTrainingSummary},
		server.ServerTool{Tool: toolGetRateGateStatus, Handler: h.getRateGateStatus},
	)

	s.AddResources(
		server.ServerResource{Resource: resTrainingSummary, Handler: h.trainingSummary},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resTrainingSummary = mcp.NewResource(
	"trainctx://training_summary",
	"Training Summary",
	mcp.WithResourceDescription("Per-exercise maxes, pain history, RPE averages and volume for the session user"),
	mcp.WithMIMEType("application/json"),
)

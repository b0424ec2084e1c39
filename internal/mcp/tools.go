package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/claude/trainctx/internal/training"
	"github.com/mark3labs/mcp-go/mcp"
)

var userIDParam = mcp.WithString("user_id", mcp.Description("User whose training data to read. Defaults to the session user."))

var toolGetTrainingContext = mcp.NewTool("get_training_context",
	mcp.WithDescription("Compact training context for prompting: profile, estimated max lifts, pain history, RPE averages, the most recent workouts in detail, older and cardio sessions summarized, goals, schedules, recovery scores, coach notes and form checks. Metered: the result reports the credit cost of the call."),
	userIDParam,
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Aggregates over the most recent completed workouts: per-exercise max lifts, pain records, RPE averages and volume. Not metered."),
	userIDParam,
)

var toolGetRateGateStatus = mcp.NewTool("get_rate_gate_status",
	mcp.WithDescription("Current hourly and daily request counts, limits, reset times and the credit cost of the next training context call."),
	userIDParam,
)

// ContextResult is what get_training_context returns.
type ContextResult struct {
	Context    *training.TrainingContext `json:"context"`
	RateStatus ratelimit.Status          `json:"rateStatus"`
	CreditCost float64                   `json:"creditCost"`
}

func (h *handlers) userID(ctx context.Context, req mcp.CallToolRequest) string {
	if id := req.GetString("user_id", ""); id != "" {
		return id
	}
	return UserIDFromContext(ctx)
}

// getTrainingContext prices the call from the gate before building and
// counts it only once a usable context was produced. A gate that cannot be
// read fails open at the base cost.
func (h *handlers) getTrainingContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := h.userID(ctx, req)
	if uid == "" {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}

	out := ContextResult{RateStatus: ratelimit.StatusOK, CreditCost: 1}
	if snap, err := h.ds.RateGate(ctx, uid); err != nil {
		h.log.Warn("mcp get_training_context: rate gate unavailable", "user_id", uid, "error", err)
	} else {
		out.RateStatus, out.CreditCost = snap.Status, snap.Cost
	}

	tc, err := h.ds.TrainingContext(ctx, uid)
	if tc == nil && err == nil {
		tc = training.EmptyContext()
	}
	if tc == nil {
		h.log.Error("mcp get_training_context", "user_id", uid, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if err != nil {
		h.log.Error("mcp get_training_context: degraded", "user_id", uid, "error", err)
	} else if _, err := h.ds.IncrementRateGate(ctx, uid); err != nil {
		h.log.Warn("mcp get_training_context: rate gate increment failed", "user_id", uid, "error", err)
	}
	out.Context = tc

	return jsonResult(out)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := h.userID(ctx, req)
	if uid == "" {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	sum, err := h.ds.Summary(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_training_summary", "user_id", uid, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(sum)
}

func (h *handlers) getRateGateStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := h.userID(ctx, req)
	if uid == "" {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	snap, err := h.ds.RateGate(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_rate_gate_status", "user_id", uid, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(snap)
}

func (h *handlers) trainingSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sum, err := h.ds.Summary(ctx, UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

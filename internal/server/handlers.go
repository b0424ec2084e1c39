package server

import (
	"encoding/json"
	"net/http"

	"github.com/claude/trainctx/internal/contextsvc"
	"github.com/claude/trainctx/internal/models"
	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// maxWorkoutBody bounds a single posted workout document.
const maxWorkoutBody = 1 << 20

// userID returns the path user id, or writes 400 and returns false.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "userID")
	if !contextsvc.ValidUserID(id) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": contextsvc.ErrInvalidUser.Error()})
		return "", false
	}
	return id, true
}

// handleTrainingContext always answers 200 once the user id is valid: a
// partial context lists its failed sources, a failed build is the empty
// context marked degraded.
func (s *Server) handleTrainingContext(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	tc, err := s.contexts.Build(r.Context(), uid)
	if err != nil {
		s.log.Error("training context degraded", "user_id", uid, "error", err)
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	sum, err := s.contexts.Summary(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// gateFor returns the user's gate after applying the profile's reset signal.
// A profile read failure leaves the counters as they are.
func (s *Server) gateFor(r *http.Request, uid string) *ratelimit.Gate {
	gate := s.gates.For(uid)

	profile, err := s.store.GetProfile(r.Context(), uid)
	switch {
	case err != nil:
		s.log.Warn("profile unavailable, skipping reset signal", "user_id", uid, "error", err)
	case profile != nil && profile.RateLimitResetAt.Valid:
		gate.ApplyResetSignal(r.Context(), profile.RateLimitResetAt.Time)
	}
	return gate
}

func (s *Server) handleRateGate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.gateFor(r, uid).Snapshot(r.Context()))
}

func (s *Server) handleRateGateIncrement(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	gate := s.gateFor(r, uid)
	gate.Increment(r.Context())
	writeJSON(w, http.StatusOK, gate.Snapshot(r.Context()))
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var doc models.WorkoutDoc
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWorkoutBody)).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if doc.UserID != "" && doc.UserID != uid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId does not match path"})
		return
	}

	inserted, err := s.store.InsertWorkout(r.Context(), uid, doc)
	if err != nil {
		s.log.Error("storing workout", "user_id", uid, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !inserted {
		writeJSON(w, http.StatusOK, map[string]any{"inserted": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"inserted": true})
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	result, err := s.alpha.Ingest(r.Context(), r.Body, uid)
	if err != nil {
		s.log.Error("alpha import error", "user_id", uid, "error", err)
		status := http.StatusBadRequest
		if result != nil {
			// parsed fine, storage failed part way
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

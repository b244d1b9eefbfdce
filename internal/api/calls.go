package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dialtrack/backend/internal/auth"
	"github.com/dialtrack/backend/internal/livecalls"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// CallsHandler exposes the live call phase endpoints
type CallsHandler struct {
	tracker  *livecalls.Tracker
	presence *presence.Service
	logger   zerolog.Logger
}

// NewCallsHandler creates a new CallsHandler
func NewCallsHandler(tracker *livecalls.Tracker, presenceSvc *presence.Service, logger zerolog.Logger) *CallsHandler {
	return &CallsHandler{
		tracker:  tracker,
		presence: presenceSvc,
		logger:   logger.With().Str("component", "calls_api").Logger(),
	}
}

// PhaseRequest is the body of a call phase update
type PhaseRequest struct {
	Phase       types.CallPhase `json:"phase"`
	CallID      string          `json:"callId"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	DID         string          `json:"did"`
	Direction   string          `json:"direction"`
	Action      string          `json:"action"`
}

// HandlePhase handles POST /api/calls/phase, reported by the agent's
// own softphone client.
func (h *CallsHandler) HandlePhase(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body PhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	err := h.tracker.UpdatePhase(r.Context(), claims.UserID, claims.Username, body.Phase, body.CallID, types.CallDetails{
		Source:      body.Source,
		Destination: body.Destination,
		DID:         body.DID,
		Direction:   body.Direction,
		Action:      body.Action,
	})
	if err != nil {
		if errors.Is(err, livecalls.ErrInvalidPhase) {
			http.Error(w, "invalid phase", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// An agent moving a call along is not idle, whatever their
	// session status says
	if err := h.presence.Touch(r.Context(), claims.UserID); err != nil {
		h.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("activity refresh failed")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleLive handles GET /api/calls/live for manager dashboards
func (h *CallsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dialtrack/backend/internal/livecalls"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// CallEventReceiver handles phase events pushed by the telephony side
// (PBX hooks), which report on behalf of an agent rather than as one.
type CallEventReceiver struct {
	tracker        *livecalls.Tracker
	presence       *presence.Service
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewCallEventReceiver creates a new call event receiver
func NewCallEventReceiver(tracker *livecalls.Tracker, presenceSvc *presence.Service, logger zerolog.Logger) *CallEventReceiver {
	return &CallEventReceiver{
		tracker:  tracker,
		presence: presenceSvc,
		logger:   logger.With().Str("component", "callevents").Logger(),
	}
}

// CallEvent is one telephony-side phase notification
type CallEvent struct {
	UserID      string          `json:"userId"`
	Username    string          `json:"username"`
	Phase       types.CallPhase `json:"phase"`
	CallID      string          `json:"callId"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	DID         string          `json:"did"`
	Direction   string          `json:"direction"`
	Action      string          `json:"action"`
}

// HandleEvent receives a single call event on POST /internal/callevents
func (rc *CallEventReceiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	var event CallEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		rc.logger.Error().Err(err).Msg("failed to decode call event")
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if event.UserID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	err := rc.tracker.UpdatePhase(req.Context(), event.UserID, event.Username, event.Phase, event.CallID, types.CallDetails{
		Source:      event.Source,
		Destination: event.Destination,
		DID:         event.DID,
		Direction:   event.Direction,
		Action:      event.Action,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := rc.presence.Touch(req.Context(), event.UserID); err != nil {
		rc.logger.Warn().Err(err).Str("user_id", event.UserID).Msg("activity refresh failed")
	}

	count := atomic.AddInt64(&rc.eventsReceived, 1)
	rc.mu.Lock()
	rc.lastReceived = time.Now()
	rc.mu.Unlock()

	if count%1000 == 0 {
		rc.logger.Info().
			Int64("total_received", count).
			Msg("call events received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (rc *CallEventReceiver) GetStats(w http.ResponseWriter, req *http.Request) {
	rc.mu.RLock()
	lastReceived := rc.lastReceived
	rc.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"events_received": atomic.LoadInt64(&rc.eventsReceived),
		"last_received":   lastReceived,
	})
}

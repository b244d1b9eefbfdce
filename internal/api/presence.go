package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/dialtrack/backend/internal/auth"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/snapshot"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// PresenceHandler exposes the agent-facing presence endpoints
type PresenceHandler struct {
	service  *presence.Service
	snapshot *snapshot.Broadcaster
	store    storage.Store
	logger   zerolog.Logger
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(service *presence.Service, snap *snapshot.Broadcaster, store storage.Store, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		service:  service,
		snapshot: snap,
		store:    store,
		logger:   logger.With().Str("component", "presence_api").Logger(),
	}
}

func sessionMeta(r *http.Request, claims *auth.Claims) presence.SessionMeta {
	return presence.SessionMeta{
		Username:  claims.Username,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// HandleHeartbeat handles POST /api/presence/heartbeat
//
// Failures are logged and swallowed: liveness tracking degrading
// gracefully beats surfacing errors to agents.
func (h *PresenceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		ClientState map[string]any `json:"clientState"`
	}
	// An empty body is a valid heartbeat
	json.NewDecoder(r.Body).Decode(&body)

	if err := h.service.RecordHeartbeat(r.Context(), claims.UserID, sessionMeta(r, claims), body.ClientState); err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("heartbeat failed")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleSetStatus handles POST /api/presence/status
func (h *PresenceHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Status types.AgentStatus `json:"status"`
		Meta   map[string]any    `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	res, err := h.service.SetStatus(r.Context(), claims.UserID, body.Status, sessionMeta(r, claims), body.Meta)
	if err != nil {
		if errors.Is(err, presence.ErrInvalidStatus) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("set status failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    res.To,
		"sessionId": res.Session.ID,
		"changed":   res.Changed,
	})
}

// HandleStartBreak handles POST /api/presence/break/start
func (h *PresenceHandler) HandleStartBreak(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		ReasonID string `json:"reasonId"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	br, err := h.service.StartBreak(r.Context(), claims.UserID, sessionMeta(r, claims), body.ReasonID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("start break failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, br)
}

// HandleEndBreak handles POST /api/presence/break/end
func (h *PresenceHandler) HandleEndBreak(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.EndBreak(r.Context(), claims.UserID, sessionMeta(r, claims)); err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("end break failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleLogout handles POST /api/presence/logout
func (h *PresenceHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "logout"
	}

	sess, err := h.service.CloseActiveSession(r.Context(), claims.UserID, body.Reason, types.EndedByUser)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("logout failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"closed": sess != nil})
}

// HandleMe handles GET /api/presence/me
func (h *PresenceHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	status, sess, err := h.service.CurrentStatus(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("status lookup failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"session": sess,
	})
}

// MeSummary aggregates the caller's sessions over the last 24 hours
type MeSummary struct {
	Status              types.AgentStatus `json:"status"`
	SessionCount        int               `json:"sessionCount"`
	TotalOnlineSeconds  int64             `json:"totalOnlineSeconds"`
	CurrentSessionID    string            `json:"currentSessionId,omitempty"`
	CurrentSessionSince *time.Time        `json:"currentSessionSince,omitempty"`
}

// HandleMeSummary handles GET /api/presence/me/summary
func (h *PresenceHandler) HandleMeSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	status, current, err := h.service.CurrentStatus(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("status lookup failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	sessions, err := h.store.ListUserSessionsSince(r.Context(), claims.UserID, now.Add(-24*time.Hour))
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("session history lookup failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	summary := MeSummary{Status: status, SessionCount: len(sessions)}
	for _, sess := range sessions {
		end := now
		if sess.LogoutAt != nil {
			end = *sess.LogoutAt
		}
		summary.TotalOnlineSeconds += int64(end.Sub(sess.LoginAt).Seconds())
	}
	if current != nil {
		summary.CurrentSessionID = current.ID
		loginAt := current.LoginAt
		summary.CurrentSessionSince = &loginAt
	}

	writeJSON(w, http.StatusOK, summary)
}

// RosterEntry is one row of the manager roster. It covers every agent
// who is online now or had a session today, so managers also see who
// already logged out.
type RosterEntry struct {
	UserID          string            `json:"userId"`
	Username        string            `json:"username,omitempty"`
	SessionID       string            `json:"sessionId,omitempty"`
	Status          types.AgentStatus `json:"status"`
	DurationSeconds int64             `json:"durationSeconds,omitempty"`
	FirstLoginToday *time.Time        `json:"firstLoginToday,omitempty"`
	LastLogoutToday *time.Time        `json:"lastLogoutToday,omitempty"`
}

// HandleManagerAgents handles GET /api/presence/manager/agents
func (h *PresenceHandler) HandleManagerAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.snapshot.Compose(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("snapshot compose failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sessions, err := h.store.ListSessionsSince(r.Context(), dayStart)
	if err != nil {
		h.logger.Error().Err(err).Msg("session history lookup failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	type dayAgg struct {
		username string
		first    time.Time
		last     *time.Time
	}
	byUser := make(map[string]*dayAgg)
	for _, sess := range sessions {
		agg, ok := byUser[sess.UserID]
		if !ok {
			agg = &dayAgg{username: sess.Username, first: sess.LoginAt}
			byUser[sess.UserID] = agg
		}
		if sess.LoginAt.Before(agg.first) {
			agg.first = sess.LoginAt
		}
		if sess.LogoutAt != nil && (agg.last == nil || sess.LogoutAt.After(*agg.last)) {
			agg.last = sess.LogoutAt
		}
		if agg.username == "" {
			agg.username = sess.Username
		}
	}

	roster := make([]RosterEntry, 0, len(agents)+len(byUser))
	online := make(map[string]bool, len(agents))
	for _, a := range agents {
		entry := RosterEntry{
			UserID:          a.UserID,
			Username:        a.Username,
			SessionID:       a.SessionID,
			Status:          a.Status,
			DurationSeconds: a.DurationSeconds,
		}
		if agg := byUser[a.UserID]; agg != nil {
			first := agg.first
			entry.FirstLoginToday = &first
			entry.LastLogoutToday = agg.last
		}
		online[a.UserID] = true
		roster = append(roster, entry)
	}
	for userID, agg := range byUser {
		if online[userID] {
			continue
		}
		first := agg.first
		roster = append(roster, RosterEntry{
			UserID:          userID,
			Username:        agg.username,
			Status:          types.StatusOffline,
			FirstLoginToday: &first,
			LastLogoutToday: agg.last,
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].UserID < roster[j].UserID })

	writeJSON(w, http.StatusOK, roster)
}

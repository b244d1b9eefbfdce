package api

import (
	"encoding/json"
	"net/http"

	"github.com/dialtrack/backend/internal/directory"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler handles superadmin-only operations: extension
// assignments, forced logouts and full data resets.
type AdminHandler struct {
	resolver *directory.Resolver
	presence *presence.Service
	store    storage.Store
	logger   zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(resolver *directory.Resolver, presenceSvc *presence.Service, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		resolver: resolver,
		presence: presenceSvc,
		store:    store,
		logger:   logger.With().Str("component", "admin_api").Logger(),
	}
}

// HandleAssignExtension handles POST /api/admin/extensions
func (h *AdminHandler) HandleAssignExtension(w http.ResponseWriter, r *http.Request) {
	var ext types.AgentExtension
	if err := json.NewDecoder(r.Body).Decode(&ext); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if ext.UserID == "" || ext.Extension == "" {
		http.Error(w, "userId and extension are required", http.StatusBadRequest)
		return
	}

	if err := h.resolver.Assign(r.Context(), &ext); err != nil {
		h.logger.Error().Err(err).Str("user_id", ext.UserID).Msg("extension assignment failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ext)
}

// HandleForceLogout handles POST /api/admin/users/{userID}/logout.
// Used for forced password resets and account closures.
func (h *AdminHandler) HandleForceLogout(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "forced_logout"
	}

	sess, err := h.presence.CloseActiveSession(r.Context(), userID, body.Reason, types.EndedBySystem)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("forced logout failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"closed": sess != nil})
}

// HandleReset handles POST /api/admin/reset, wiping all presence data
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("reset failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	h.logger.Warn().Msg("all presence data wiped")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

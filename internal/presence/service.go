package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dialtrack/backend/internal/broadcast"
	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidStatus is returned when a requested status is outside the
// five-value enum. Rejected before any write.
var ErrInvalidStatus = errors.New("invalid agent status")

// SessionMeta carries request-level context recorded on session creation.
type SessionMeta struct {
	Username  string
	IP        string
	UserAgent string
}

// StatusResult is the outcome of a SetStatus call. Changed is false
// when the requested status equals the current one, in which case no
// event was written and no broadcast fired.
type StatusResult struct {
	Session *types.AgentSession
	From    types.AgentStatus
	To      types.AgentStatus
	Changed bool
}

// Service owns the agent session lifecycle, the status state machine,
// breaks and heartbeats. All mutations append to the presence event
// trail; the current status of a session is always derived from that
// trail, never cached.
type Service struct {
	store  storage.Store
	bc     broadcast.Broadcaster
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a presence service
func NewService(store storage.Store, bc broadcast.Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		bc:     bc,
		logger: logger.With().Str("component", "presence").Logger(),
		now:    time.Now,
	}
}

// EnsureSession returns the active session for the user, creating one
// (with a LOGIN event and a "session:opened" broadcast) if none exists.
// Concurrent callers may race past the existence check; duplicate
// sessions are tolerated transiently and collapsed by the next logout
// or timeout.
func (s *Service) EnsureSession(ctx context.Context, userID string, meta SessionMeta) (*types.AgentSession, error) {
	sess, err := s.store.FindActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if sess != nil {
		return sess, nil
	}

	now := s.now()
	sess = &types.AgentSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		Username:       meta.Username,
		LoginAt:        now,
		LoginIP:        meta.IP,
		UserAgent:      meta.UserAgent,
		IsActive:       true,
		InitialStatus:  types.StatusAvailable,
		LastActivityAt: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := s.appendEvent(ctx, sess, types.EventLogin, types.StatusOffline, types.StatusAvailable, nil); err != nil {
		return nil, err
	}

	metrics.Get().RecordSessionOpened()
	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", sess.ID).
		Msg("session opened")

	s.emit(userID, "session:opened", types.SessionChange{
		UserID:    userID,
		SessionID: sess.ID,
	})
	return sess, nil
}

// CloseActiveSession marks the user's active session inactive, appends
// a LOGOUT event carrying the last derived status, and broadcasts
// "session:closed". Returns nil, nil when no session is active.
func (s *Service) CloseActiveSession(ctx context.Context, userID, reason string, endedBy types.EndedBy) (*types.AgentSession, error) {
	sess, err := s.store.FindActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	return s.closeSession(ctx, sess, reason, endedBy)
}

// closeSession is the shared path for explicit logout and the sweep's
// forced timeout.
func (s *Service) closeSession(ctx context.Context, sess *types.AgentSession, reason string, endedBy types.EndedBy) (*types.AgentSession, error) {
	lastStatus, err := s.getLastStatus(ctx, sess)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess.IsActive = false
	sess.LogoutAt = &now
	sess.EndedBy = endedBy
	sess.EndReason = reason
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	meta := map[string]any{"reason": reason}
	if err := s.appendEvent(ctx, sess, types.EventLogout, lastStatus, types.StatusOffline, meta); err != nil {
		return nil, err
	}

	metrics.Get().RecordSessionClosed(reason == "session_timeout")
	s.logger.Info().
		Str("user_id", sess.UserID).
		Str("session_id", sess.ID).
		Str("reason", reason).
		Str("ended_by", string(endedBy)).
		Msg("session closed")

	s.emit(sess.UserID, "session:closed", types.SessionChange{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Reason:    reason,
	})
	return sess, nil
}

// SetStatus ensures a session, derives the current status and appends
// a STATUS_CHANGE event when it differs from the requested one.
// Identical repeated requests are no-ops: no event, no broadcast.
func (s *Service) SetStatus(ctx context.Context, userID string, to types.AgentStatus, meta SessionMeta, eventMeta map[string]any) (*StatusResult, error) {
	if !types.ValidStatus(to) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	sess, err := s.EnsureSession(ctx, userID, meta)
	if err != nil {
		return nil, err
	}

	from, err := s.getLastStatus(ctx, sess)
	if err != nil {
		return nil, err
	}
	if from == to {
		return &StatusResult{Session: sess, From: from, To: to}, nil
	}

	if err := s.appendEvent(ctx, sess, types.EventStatusChange, from, to, eventMeta); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, sess); err != nil {
		return nil, err
	}

	metrics.Get().RecordStatusChange()
	s.emit(userID, "presence:update", types.PresenceUpdate{
		UserID:    userID,
		SessionID: sess.ID,
		From:      from,
		To:        to,
	})
	return &StatusResult{Session: sess, From: from, To: to, Changed: true}, nil
}

// StartBreak forces the agent to BREAK and opens a break record.
func (s *Service) StartBreak(ctx context.Context, userID string, meta SessionMeta, reasonID string) (*types.AgentBreak, error) {
	sess, err := s.EnsureSession(ctx, userID, meta)
	if err != nil {
		return nil, err
	}

	if _, err := s.SetStatus(ctx, userID, types.StatusBreak, meta, nil); err != nil {
		return nil, err
	}

	// At most one open break per session. A repeated start while a
	// break is still open returns the open record instead of stacking
	// a second one.
	open, err := s.store.FindOpenBreak(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("find open break: %w", err)
	}
	if open != nil {
		return open, nil
	}

	br := &types.AgentBreak{
		ID:            uuid.New().String(),
		UserID:        userID,
		SessionID:     sess.ID,
		BreakReasonID: reasonID,
		StartAt:       s.now(),
	}
	if err := s.store.CreateBreak(ctx, br); err != nil {
		return nil, fmt.Errorf("create break: %w", err)
	}

	if err := s.appendEvent(ctx, sess, types.EventBreakStart, "", types.StatusBreak, nil); err != nil {
		return nil, err
	}

	metrics.Get().RecordBreakStarted()
	s.emit(userID, "break:started", types.BreakChange{
		UserID:    userID,
		SessionID: sess.ID,
		BreakID:   br.ID,
		ReasonID:  reasonID,
	})
	return br, nil
}

// EndBreak closes the open break for the active session and forces the
// status back to AVAILABLE. When no break is open it still forces
// AVAILABLE so an agent can never be stuck in BREAK.
func (s *Service) EndBreak(ctx context.Context, userID string, meta SessionMeta) error {
	sess, err := s.EnsureSession(ctx, userID, meta)
	if err != nil {
		return err
	}

	open, err := s.store.FindOpenBreak(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("find open break: %w", err)
	}
	if open != nil {
		now := s.now()
		open.EndAt = &now
		open.EndedBy = types.EndedByUser
		if err := s.store.UpdateBreak(ctx, open); err != nil {
			return fmt.Errorf("update break: %w", err)
		}
	}

	if err := s.appendEvent(ctx, sess, types.EventBreakEnd, types.StatusBreak, "", nil); err != nil {
		return err
	}

	if _, err := s.SetStatus(ctx, userID, types.StatusAvailable, meta, nil); err != nil {
		return err
	}

	change := types.BreakChange{UserID: userID, SessionID: sess.ID}
	if open != nil {
		change.BreakID = open.ID
	}
	metrics.Get().RecordBreakEnded()
	s.emit(userID, "break:ended", change)
	return nil
}

// RecordHeartbeat appends a liveness ping and refreshes the session's
// last-activity timestamp. Heartbeat is the primary idle signal.
func (s *Service) RecordHeartbeat(ctx context.Context, userID string, meta SessionMeta, clientState map[string]any) error {
	sess, err := s.EnsureSession(ctx, userID, meta)
	if err != nil {
		return err
	}

	hb := &types.Heartbeat{
		ID:          uuid.New().String(),
		UserID:      userID,
		SessionID:   sess.ID,
		ClientState: clientState,
		IP:          meta.IP,
		TS:          s.now(),
	}
	if err := s.store.AppendHeartbeat(ctx, hb); err != nil {
		return fmt.Errorf("append heartbeat: %w", err)
	}

	if err := s.appendEvent(ctx, sess, types.EventHeartbeat, "", "", nil); err != nil {
		return err
	}
	metrics.Get().RecordHeartbeat()
	return s.touch(ctx, sess)
}

// CurrentStatus derives the user's current status. OFFLINE when no
// session is active.
func (s *Service) CurrentStatus(ctx context.Context, userID string) (types.AgentStatus, *types.AgentSession, error) {
	sess, err := s.store.FindActiveSession(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("find active session: %w", err)
	}
	if sess == nil {
		return types.StatusOffline, nil, nil
	}
	status, err := s.getLastStatus(ctx, sess)
	if err != nil {
		return "", nil, err
	}
	return status, sess, nil
}

// Touch refreshes the active session's last-activity timestamp without
// writing any event. Used by call-phase updates to keep an agent on a
// call from tripping idle detection.
func (s *Service) Touch(ctx context.Context, userID string) error {
	sess, err := s.store.FindActiveSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("find active session: %w", err)
	}
	if sess == nil {
		return nil
	}
	return s.touch(ctx, sess)
}

// getLastStatus folds the event trail: the most recent event with a
// non-empty ToStatus wins, defaulting to the session's initial status.
func (s *Service) getLastStatus(ctx context.Context, sess *types.AgentSession) (types.AgentStatus, error) {
	ev, err := s.store.FindLastStatusEvent(ctx, sess.ID)
	if err != nil {
		return "", fmt.Errorf("find last status event: %w", err)
	}
	if ev != nil && ev.ToStatus != "" {
		return ev.ToStatus, nil
	}
	if sess.InitialStatus != "" {
		return sess.InitialStatus, nil
	}
	return types.StatusAvailable, nil
}

func (s *Service) appendEvent(ctx context.Context, sess *types.AgentSession, eventType types.EventType, from, to types.AgentStatus, meta map[string]any) error {
	ev := &types.PresenceEvent{
		ID:         uuid.New().String(),
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		EventType:  eventType,
		FromStatus: from,
		ToStatus:   to,
		TS:         s.now(),
		Meta:       meta,
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func (s *Service) touch(ctx context.Context, sess *types.AgentSession) error {
	sess.LastActivityAt = s.now()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// emit fans an event out to the acting user and to managers. Broadcast
// failures are impossible by contract (fire-and-forget), so mutations
// never roll back on delivery problems.
func (s *Service) emit(userID, event string, payload any) {
	s.bc.EmitToUser(userID, event, payload)
	s.bc.EmitToManagers(event, payload)
}

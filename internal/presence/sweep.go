package presence

import (
	"context"
	"time"

	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// Sweeper periodically scans active sessions, auto-idling stale agents
// and force-closing timed-out sessions. One bad session never aborts
// the batch.
type Sweeper struct {
	service       *Service
	idleThreshold time.Duration
	timeout       time.Duration
	interval      time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSweeper creates an idle/timeout sweeper
func NewSweeper(service *Service, idleThreshold, timeout, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		service:       service,
		idleThreshold: idleThreshold,
		timeout:       timeout,
		interval:      interval,
		logger:        logger.With().Str("component", "presence_sweep").Logger(),
		now:           time.Now,
	}
}

// Start runs the sweep loop until the context is cancelled
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info().
		Dur("interval", sw.interval).
		Dur("idle_threshold", sw.idleThreshold).
		Dur("session_timeout", sw.timeout).
		Msg("presence sweep started")

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info().Msg("presence sweep stopped")
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass over all active sessions. Exported so tests
// can drive it without the ticker.
func (sw *Sweeper) Sweep(ctx context.Context) {
	sessions, err := sw.service.store.ListActiveSessions(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("failed to list active sessions")
		return
	}

	start := time.Now()
	now := sw.now()
	for i := range sessions {
		sess := sessions[i]
		if err := sw.sweepSession(ctx, &sess, now); err != nil {
			sw.logger.Error().Err(err).
				Str("user_id", sess.UserID).
				Str("session_id", sess.ID).
				Msg("sweep failed for session, skipping")
		}
	}
	metrics.Get().RecordSweepCycle(time.Since(start))
}

func (sw *Sweeper) sweepSession(ctx context.Context, sess *types.AgentSession, now time.Time) error {
	last := sess.LastActivityAt
	if last.IsZero() {
		last = sess.LoginAt
	}
	elapsed := now.Sub(last)

	if elapsed >= sw.timeout {
		// Hard ceiling: close regardless of status, ON_CALL and BREAK
		// included. An open break is deliberately left open as evidence
		// of an unterminated break.
		_, err := sw.service.closeSession(ctx, sess, "session_timeout", types.EndedBySystem)
		if err != nil {
			return err
		}
		sw.logger.Info().
			Str("user_id", sess.UserID).
			Str("session_id", sess.ID).
			Dur("elapsed", elapsed).
			Msg("session timed out")
		return nil
	}

	if elapsed >= sw.idleThreshold {
		return sw.autoIdle(ctx, sess)
	}
	return nil
}

// autoIdle transitions a stale session to IDLE unless its current
// status is protected (IDLE already, BREAK, or ON_CALL).
func (sw *Sweeper) autoIdle(ctx context.Context, sess *types.AgentSession) error {
	status, err := sw.service.getLastStatus(ctx, sess)
	if err != nil {
		return err
	}
	switch status {
	case types.StatusIdle, types.StatusBreak, types.StatusOnCall:
		return nil
	}

	if err := sw.service.appendEvent(ctx, sess, types.EventIdleAuto, status, types.StatusIdle, nil); err != nil {
		return err
	}

	metrics.Get().RecordAutoIdle()
	sw.logger.Info().
		Str("user_id", sess.UserID).
		Str("session_id", sess.ID).
		Str("from", string(status)).
		Msg("agent auto-idled")

	sw.service.emit(sess.UserID, "presence:update", types.PresenceUpdate{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		From:      status,
		To:        types.StatusIdle,
		Source:    "auto",
	})
	return nil
}

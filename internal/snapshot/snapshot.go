// Package snapshot periodically composes the full presence picture and
// broadcasts it to manager dashboards. Dashboards render from the full
// snapshot, not incremental patches, so a missed message never causes
// client-side drift.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/dialtrack/backend/internal/broadcast"
	"github.com/dialtrack/backend/internal/livecalls"
	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster composes agent presence snapshots on a fixed interval
type Broadcaster struct {
	store    storage.Store
	tracker  *livecalls.Tracker
	bc       broadcast.Broadcaster
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBroadcaster creates a snapshot broadcaster
func NewBroadcaster(store storage.Store, tracker *livecalls.Tracker, bc broadcast.Broadcaster, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:    store,
		tracker:  tracker,
		bc:       bc,
		interval: interval,
		logger:   logger.With().Str("component", "snapshot").Logger(),
		now:      time.Now,
	}
}

// Start runs the snapshot loop until the context is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", b.interval).Msg("snapshot broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("snapshot broadcaster stopped")
			return
		case <-ticker.C:
			agents, err := b.Compose(ctx)
			if err != nil {
				b.logger.Error().Err(err).Msg("failed to compose presence snapshot")
				continue
			}

			liveCalls := b.tracker.Snapshot()
			metrics.Get().UpdateAgentStats(agents, len(liveCalls))

			if len(agents) == 0 {
				continue
			}

			b.bc.EmitToManagers("presence:snapshot", agents)

			b.logger.Debug().
				Int("agents", len(agents)).
				Int("live_calls", len(liveCalls)).
				Msg("snapshot broadcasted")
		}
	}
}

// Compose builds one presence entry per active session, deriving each
// agent's status from their event trail. Sessions whose derivation
// fails are skipped rather than aborting the whole snapshot.
func (b *Broadcaster) Compose(ctx context.Context) ([]types.AgentPresence, error) {
	sessions, err := b.store.ListActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	out := make([]types.AgentPresence, 0, len(sessions))
	for _, sess := range sessions {
		status, err := b.deriveStatus(ctx, &sess)
		if err != nil {
			b.logger.Error().Err(err).
				Str("session_id", sess.ID).
				Msg("status derivation failed, skipping session")
			continue
		}
		out = append(out, types.AgentPresence{
			UserID:          sess.UserID,
			Username:        sess.Username,
			SessionID:       sess.ID,
			Status:          status,
			LoginAt:         sess.LoginAt,
			LastActivityAt:  sess.LastActivityAt,
			DurationSeconds: int64(now.Sub(sess.LoginAt).Seconds()),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (b *Broadcaster) deriveStatus(ctx context.Context, sess *types.AgentSession) (types.AgentStatus, error) {
	ev, err := b.store.FindLastStatusEvent(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if ev != nil && ev.ToStatus != "" {
		return ev.ToStatus, nil
	}
	if sess.InitialStatus != "" {
		return sess.InitialStatus, nil
	}
	return types.StatusAvailable, nil
}

package livecalls

import (
	"context"
	"time"

	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// Sweeper evicts stale pre-connect entries. A call stuck in dialing,
// ringing or connecting past the TTL was abandoned by the telephony
// side and would otherwise sit on dashboards forever. Connected calls
// are never evicted; "ended" is the only exit for those.
type Sweeper struct {
	tracker  *Tracker
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a stale live-call sweeper
func NewSweeper(tracker *Tracker, ttl, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With().Str("component", "livecalls_sweep").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info().
		Dur("interval", sw.interval).
		Dur("ttl", sw.ttl).
		Msg("live call sweep started")

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info().Msg("live call sweep stopped")
			return
		case <-ticker.C:
			sw.Sweep()
		}
	}
}

// Sweep runs a single eviction pass, rebroadcasting the snapshot to
// managers only when something changed.
func (sw *Sweeper) Sweep() {
	t := sw.tracker
	now := t.now()

	t.mu.Lock()
	changed := false
	for userID, entry := range t.calls {
		switch entry.Status {
		case string(types.PhaseDialing), string(types.PhaseRinging), string(types.PhaseConnecting):
			if now.Sub(entry.UpdatedAt) > sw.ttl {
				delete(t.calls, userID)
				changed = true
				metrics.Get().RecordStaleCallSwept()
				sw.logger.Info().
					Str("user_id", userID).
					Str("call_id", entry.CallID).
					Str("status", entry.Status).
					Msg("evicted stale live call")
			}
		}
	}
	var snapshot []types.LiveCall
	if changed {
		snapshot = t.snapshotLocked()
	}
	t.mu.Unlock()

	if changed {
		t.bc.EmitToManagers("live:calls:update", snapshot)
	}
}

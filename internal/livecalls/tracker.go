package livecalls

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dialtrack/backend/internal/broadcast"
	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// ErrInvalidPhase is returned when a phase is outside the five-value enum
var ErrInvalidPhase = errors.New("invalid call phase")

// DIDResolver looks up an agent's assigned extension and DID. Used as a
// side-channel when a phase update arrives without a DID.
type DIDResolver interface {
	Resolve(ctx context.Context, userID string) (extension, did string, err error)
}

// Tracker holds the in-memory map of live calls, keyed by user. At most
// one live call per agent; a new phase event overwrites the prior entry
// (last-writer-wins for in-flight metadata). Entirely independent of the
// persisted session/status model.
type Tracker struct {
	mu       sync.RWMutex
	calls    map[string]*types.LiveCall
	bc       broadcast.Broadcaster
	resolver DIDResolver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTracker creates a live call tracker. resolver may be nil, in which
// case DID resolution is skipped.
func NewTracker(bc broadcast.Broadcaster, resolver DIDResolver, logger zerolog.Logger) *Tracker {
	return &Tracker{
		calls:    make(map[string]*types.LiveCall),
		bc:       bc,
		resolver: resolver,
		logger:   logger.With().Str("component", "livecalls").Logger(),
		now:      time.Now,
	}
}

// UpdatePhase advances the call phase for a user and broadcasts the full
// snapshot to managers plus a phase ack to the user. Pre-connect phases
// merge details over the previous entry; "connected" additionally flips
// status to on_call and stamps startTime exactly once; "ended" removes
// the entry (a no-op when none exists).
func (t *Tracker) UpdatePhase(ctx context.Context, userID, username string, phase types.CallPhase, callID string, details types.CallDetails) error {
	if !types.ValidPhase(phase) {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	if callID == "" {
		return errors.New("missing call id")
	}

	t.resolveDID(ctx, userID, &details)

	t.mu.Lock()
	switch phase {
	case types.PhaseEnded:
		delete(t.calls, userID)
	case types.PhaseConnected:
		entry := t.merge(userID, username, callID, details)
		entry.Status = types.LiveCallOnCall
		if entry.StartTime == nil {
			now := t.now()
			entry.StartTime = &now
		}
	default: // dialing, ringing, connecting
		entry := t.merge(userID, username, callID, details)
		entry.Status = string(phase)
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	metrics.Get().RecordPhaseUpdate()
	t.bc.EmitToManagers("live:calls:update", snapshot)
	t.bc.EmitToUser(userID, "call:phase:"+string(phase), types.PhaseAck{CallID: callID})
	return nil
}

// merge upserts the entry for userID, keeping prior field values where
// the incoming details are empty. Caller must hold the lock.
func (t *Tracker) merge(userID, username, callID string, details types.CallDetails) *types.LiveCall {
	prev := t.calls[userID]
	entry := &types.LiveCall{
		UserID:    userID,
		Username:  username,
		CallID:    callID,
		UpdatedAt: t.now(),
	}
	if prev != nil {
		entry.StartTime = prev.StartTime
		entry.Source = prev.Source
		entry.Destination = prev.Destination
		entry.DID = prev.DID
		entry.Direction = prev.Direction
		entry.Action = prev.Action
	}
	if details.Source != "" {
		entry.Source = details.Source
	}
	if details.Destination != "" {
		entry.Destination = details.Destination
	}
	if details.DID != "" {
		entry.DID = details.DID
	}
	if details.Direction != "" {
		entry.Direction = details.Direction
	}
	if details.Action != "" {
		entry.Action = details.Action
	}
	t.calls[userID] = entry
	return entry
}

// resolveDID fills in the DID (and source, when empty) from the agent's
// assigned extension. Lookup failures degrade to an unresolved DID.
func (t *Tracker) resolveDID(ctx context.Context, userID string, details *types.CallDetails) {
	if details.DID != "" || t.resolver == nil {
		return
	}
	extension, did, err := t.resolver.Resolve(ctx, userID)
	if err != nil {
		t.logger.Warn().Err(err).Str("user_id", userID).Msg("DID resolution failed")
		return
	}
	if did != "" {
		details.DID = did
	}
	if details.Source == "" && extension != "" {
		details.Source = extension
	}
}

// Snapshot returns all live calls sorted by user ID
func (t *Tracker) Snapshot() []types.LiveCall {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Get returns the live call for a user, nil when none
func (t *Tracker) Get(userID string) *types.LiveCall {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.calls[userID]
	if !ok {
		return nil
	}
	copied := *entry
	return &copied
}

func (t *Tracker) snapshotLocked() []types.LiveCall {
	out := make([]types.LiveCall, 0, len(t.calls))
	for _, entry := range t.calls {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

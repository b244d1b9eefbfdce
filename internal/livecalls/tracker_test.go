package livecalls

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

type recordedEvent struct {
	Scope   string
	UserID  string
	Event   string
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) EmitToUser(userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Scope: "user", UserID: userID, Event: event, Payload: payload})
}

func (r *recorder) EmitToManagers(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Scope: "managers", Event: event, Payload: payload})
}

func (r *recorder) last(event string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i], true
		}
	}
	return recordedEvent{}, false
}

type staticResolver struct {
	extension string
	did       string
	err       error
}

func (s *staticResolver) Resolve(context.Context, string) (string, string, error) {
	return s.extension, s.did, s.err
}

func newTestTracker(resolver DIDResolver) (*Tracker, *recorder) {
	rec := &recorder{}
	var buf bytes.Buffer
	return NewTracker(rec, resolver, zerolog.New(&buf)), rec
}

func TestUpdatePhaseMergesDetails(t *testing.T) {
	tr, rec := newTestTracker(nil)
	ctx := context.Background()

	err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseDialing, "call-1", types.CallDetails{
		Source:      "1001",
		Destination: "+4915112345678",
		Direction:   "outbound",
	})
	if err != nil {
		t.Fatalf("UpdatePhase(dialing): %v", err)
	}

	// Ringing omits fields already known from dialing
	err = tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseRinging, "call-1", types.CallDetails{
		Action: "ivr",
	})
	if err != nil {
		t.Fatalf("UpdatePhase(ringing): %v", err)
	}

	entry := tr.Get("user-1")
	if entry == nil {
		t.Fatal("expected live call entry")
	}
	if entry.Status != "ringing" {
		t.Errorf("status = %s, want ringing", entry.Status)
	}
	if entry.Source != "1001" || entry.Destination != "+4915112345678" || entry.Direction != "outbound" {
		t.Errorf("prior details lost on merge: %+v", entry)
	}
	if entry.Action != "ivr" {
		t.Errorf("new detail not merged: %+v", entry)
	}
	if entry.StartTime != nil {
		t.Error("startTime must stay unset before connected")
	}

	ev, ok := rec.last("call:phase:ringing")
	if !ok || ev.UserID != "user-1" {
		t.Errorf("missing phase ack for user, got %+v", ev)
	}
	if _, ok := rec.last("live:calls:update"); !ok {
		t.Error("missing manager snapshot broadcast")
	}
}

func TestConnectedSetsStartTimeOnce(t *testing.T) {
	tr, _ := newTestTracker(nil)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return first }
	if err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseConnected, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}

	entry := tr.Get("user-1")
	if entry.Status != types.LiveCallOnCall {
		t.Errorf("status = %s, want on_call", entry.Status)
	}
	if entry.StartTime == nil || !entry.StartTime.Equal(first) {
		t.Fatalf("startTime = %v, want %v", entry.StartTime, first)
	}

	// Duplicate connected signal must not reset the start time
	tr.now = func() time.Time { return first.Add(45 * time.Second) }
	if err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseConnected, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase (duplicate): %v", err)
	}
	entry = tr.Get("user-1")
	if !entry.StartTime.Equal(first) {
		t.Errorf("duplicate connected reset startTime to %v", entry.StartTime)
	}
}

func TestEndedRemovesEntry(t *testing.T) {
	tr, rec := newTestTracker(nil)
	ctx := context.Background()

	if err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseConnected, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	if err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseEnded, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase(ended): %v", err)
	}

	if tr.Get("user-1") != nil {
		t.Error("ended must remove the entry")
	}
	ev, ok := rec.last("live:calls:update")
	if !ok {
		t.Fatal("missing snapshot broadcast after ended")
	}
	if calls, ok := ev.Payload.([]types.LiveCall); !ok || len(calls) != 0 {
		t.Errorf("snapshot after ended = %+v", ev.Payload)
	}
}

func TestEndedWithoutEntryIsNoop(t *testing.T) {
	tr, rec := newTestTracker(nil)

	if err := tr.UpdatePhase(context.Background(), "user-1", "", types.PhaseEnded, "call-9", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase(ended, no entry): %v", err)
	}
	if _, ok := rec.last("call:phase:ended"); !ok {
		t.Error("phase ack should still be sent")
	}
}

func TestUpdatePhaseValidation(t *testing.T) {
	tr, _ := newTestTracker(nil)
	ctx := context.Background()

	if err := tr.UpdatePhase(ctx, "user-1", "", "held", "call-1", types.CallDetails{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("expected ErrInvalidPhase, got %v", err)
	}
	if err := tr.UpdatePhase(ctx, "user-1", "", types.PhaseDialing, "", types.CallDetails{}); err == nil {
		t.Error("expected error for missing call id")
	}
}

func TestDIDResolution(t *testing.T) {
	tr, _ := newTestTracker(&staticResolver{extension: "1001", did: "+4930555000"})
	ctx := context.Background()

	if err := tr.UpdatePhase(ctx, "user-1", "alice", types.PhaseDialing, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	entry := tr.Get("user-1")
	if entry.DID != "+4930555000" {
		t.Errorf("DID = %s, want resolved value", entry.DID)
	}
	if entry.Source != "1001" {
		t.Errorf("source = %s, want extension fallback", entry.Source)
	}

	// A provided DID skips resolution entirely
	if err := tr.UpdatePhase(ctx, "user-2", "bob", types.PhaseDialing, "call-2", types.CallDetails{DID: "+4930111222"}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	if got := tr.Get("user-2").DID; got != "+4930111222" {
		t.Errorf("DID = %s, want provided value", got)
	}
}

func TestDIDResolutionFailureIsNonFatal(t *testing.T) {
	tr, _ := newTestTracker(&staticResolver{err: errors.New("lookup down")})

	if err := tr.UpdatePhase(context.Background(), "user-1", "", types.PhaseRinging, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("resolution failure must not fail the update: %v", err)
	}
	if got := tr.Get("user-1").DID; got != "" {
		t.Errorf("DID = %s, want empty", got)
	}
}

func TestSnapshotSorted(t *testing.T) {
	tr, _ := newTestTracker(nil)
	ctx := context.Background()

	for _, u := range []string{"user-c", "user-a", "user-b"} {
		if err := tr.UpdatePhase(ctx, u, "", types.PhaseDialing, "call-"+u, types.CallDetails{}); err != nil {
			t.Fatalf("UpdatePhase(%s): %v", u, err)
		}
	}

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot size = %d", len(snap))
	}
	for i, want := range []string{"user-a", "user-b", "user-c"} {
		if snap[i].UserID != want {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].UserID, want)
		}
	}
}

func TestSweeperEvictsStalePreConnect(t *testing.T) {
	tr, rec := newTestTracker(nil)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }
	if err := tr.UpdatePhase(ctx, "user-stale", "", types.PhaseRinging, "call-1", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	if err := tr.UpdatePhase(ctx, "user-live", "", types.PhaseConnected, "call-2", types.CallDetails{}); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}

	var buf bytes.Buffer
	sw := NewSweeper(tr, 2*time.Minute, 15*time.Second, zerolog.New(&buf))

	tr.now = func() time.Time { return base.Add(3 * time.Minute) }
	sw.Sweep()

	if tr.Get("user-stale") != nil {
		t.Error("stale pre-connect entry should be evicted")
	}
	if tr.Get("user-live") == nil {
		t.Error("connected calls must never be evicted")
	}

	ev, ok := rec.last("live:calls:update")
	if !ok {
		t.Fatal("eviction must rebroadcast the snapshot")
	}
	if calls := ev.Payload.([]types.LiveCall); len(calls) != 1 || calls[0].UserID != "user-live" {
		t.Errorf("post-sweep snapshot = %+v", ev.Payload)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tr, _ := newTestTracker(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := "user-" + string(rune('a'+n%4))
			for j := 0; j < 50; j++ {
				_ = tr.UpdatePhase(ctx, user, "", types.PhaseRinging, "call-1", types.CallDetails{})
				_ = tr.UpdatePhase(ctx, user, "", types.PhaseConnected, "call-1", types.CallDetails{})
				tr.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	if got := len(tr.Snapshot()); got != 4 {
		t.Errorf("expected 4 live calls after concurrent updates, got %d", got)
	}
}

package presence

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

func newTestSweeper(svc *Service, now time.Time) *Sweeper {
	var buf bytes.Buffer
	sw := NewSweeper(svc, 120*time.Second, 900*time.Second, 15*time.Second, zerolog.New(&buf))
	sw.now = func() time.Time { return now }
	return sw
}

func sessionAt(t *testing.T, svc *Service, userID string, at time.Time) *types.AgentSession {
	t.Helper()
	svc.now = func() time.Time { return at }
	sess, err := svc.EnsureSession(context.Background(), userID, SessionMeta{})
	if err != nil {
		t.Fatalf("EnsureSession(%s): %v", userID, err)
	}
	return sess
}

func TestSweepAutoIdle(t *testing.T) {
	svc, store, rec := newTestService(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sess := sessionAt(t, svc, "user-1", base)

	sw := newTestSweeper(svc, base.Add(125*time.Second))
	sw.Sweep(context.Background())

	events := store.Events(sess.ID)
	last := events[len(events)-1]
	if last.EventType != types.EventIdleAuto {
		t.Fatalf("last event = %s, want IDLE_AUTO", last.EventType)
	}
	if last.FromStatus != types.StatusAvailable || last.ToStatus != types.StatusIdle {
		t.Errorf("IDLE_AUTO statuses = %s -> %s", last.FromStatus, last.ToStatus)
	}

	updates := rec.named("presence:update")
	if len(updates) == 0 {
		t.Fatal("missing presence:update broadcast")
	}
	if p, ok := updates[0].Payload.(types.PresenceUpdate); !ok || p.Source != "auto" {
		t.Errorf("expected source=auto payload, got %+v", updates[0].Payload)
	}

	// Second pass: already IDLE, no duplicate event
	sw.Sweep(context.Background())
	events = store.Events(sess.ID)
	count := 0
	for _, e := range events {
		if e.EventType == types.EventIdleAuto {
			count++
		}
	}
	if count != 1 {
		t.Errorf("IDLE_AUTO events = %d, want 1", count)
	}
}

func TestSweepProtectedStatuses(t *testing.T) {
	for _, status := range []types.AgentStatus{types.StatusOnCall, types.StatusBreak, types.StatusIdle} {
		t.Run(string(status), func(t *testing.T) {
			svc, store, _ := newTestService(t)
			base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
			sess := sessionAt(t, svc, "user-1", base)
			if _, err := svc.SetStatus(context.Background(), "user-1", status, SessionMeta{}, nil); err != nil {
				t.Fatalf("SetStatus: %v", err)
			}

			// Stale well past the idle threshold but short of timeout
			sw := newTestSweeper(svc, base.Add(500*time.Second))
			sw.Sweep(context.Background())

			for _, e := range store.Events(sess.ID) {
				if e.EventType == types.EventIdleAuto {
					t.Errorf("%s must be protected from auto-idle", status)
				}
			}
		})
	}
}

func TestSweepTimeoutCeiling(t *testing.T) {
	svc, store, rec := newTestService(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sess := sessionAt(t, svc, "user-1", base)

	// ON_CALL does not protect against the hard timeout
	if _, err := svc.SetStatus(context.Background(), "user-1", types.StatusOnCall, SessionMeta{}, nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	sw := newTestSweeper(svc, base.Add(901*time.Second))
	sw.Sweep(context.Background())

	closed, err := store.FindActiveSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindActiveSession: %v", err)
	}
	if closed != nil {
		t.Fatal("session should have been force-closed")
	}

	events := store.Events(sess.ID)
	last := events[len(events)-1]
	if last.EventType != types.EventLogout {
		t.Fatalf("last event = %s, want LOGOUT", last.EventType)
	}
	if last.FromStatus != types.StatusOnCall || last.ToStatus != types.StatusOffline {
		t.Errorf("LOGOUT statuses = %s -> %s", last.FromStatus, last.ToStatus)
	}
	if last.Meta["reason"] != "session_timeout" {
		t.Errorf("LOGOUT meta = %v", last.Meta)
	}
	if got := rec.named("session:closed"); len(got) == 0 {
		t.Error("missing session:closed broadcast")
	}
}

func TestSweepTimeoutLeavesBreakOpen(t *testing.T) {
	svc, store, _ := newTestService(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	br, err := svc.StartBreak(context.Background(), "user-1", SessionMeta{}, "")
	if err != nil {
		t.Fatalf("StartBreak: %v", err)
	}

	sw := newTestSweeper(svc, base.Add(1000*time.Second))
	sw.Sweep(context.Background())

	sess, _ := store.FindActiveSession(context.Background(), "user-1")
	if sess != nil {
		t.Fatal("session should have been force-closed")
	}

	// The break row keeps EndAt=nil as evidence of an unterminated break
	breaks := store.Breaks(br.SessionID)
	if len(breaks) != 1 || breaks[0].EndAt != nil {
		t.Errorf("break should remain open after timeout: %+v", breaks)
	}
}

// failLastStatusStore errors on status derivation for one session
type failLastStatusStore struct {
	storage.Store
	badSessionID string
}

func (f *failLastStatusStore) FindLastStatusEvent(ctx context.Context, sessionID string) (*types.PresenceEvent, error) {
	if sessionID == f.badSessionID {
		return nil, errors.New("simulated store failure")
	}
	return f.Store.FindLastStatusEvent(ctx, sessionID)
}

func TestSweepSkipsFailingSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	bad := sessionAt(t, svc, "user-bad", base)
	good := sessionAt(t, svc, "user-good", base)

	svc.store = &failLastStatusStore{Store: store, badSessionID: bad.ID}

	sw := newTestSweeper(svc, base.Add(200*time.Second))
	sw.Sweep(context.Background())

	// The failing session must not block the rest of the batch
	found := false
	for _, e := range store.Events(good.ID) {
		if e.EventType == types.EventIdleAuto {
			found = true
		}
	}
	if !found {
		t.Error("healthy session was not swept after a failing one")
	}
}

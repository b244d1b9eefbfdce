package snapshot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dialtrack/backend/internal/broadcast"
	"github.com/dialtrack/backend/internal/livecalls"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

func TestCompose(t *testing.T) {
	store := storage.NewMemoryStore()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	svc := presence.NewService(store, broadcast.Noop{}, logger)
	tracker := livecalls.NewTracker(broadcast.Noop{}, nil, logger)
	ctx := context.Background()

	if _, err := svc.EnsureSession(ctx, "user-b", presence.SessionMeta{Username: "bob"}); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if _, err := svc.SetStatus(ctx, "user-a", types.StatusBreak, presence.SessionMeta{Username: "alice"}, nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// Closed sessions never appear in the snapshot
	if _, err := svc.EnsureSession(ctx, "user-c", presence.SessionMeta{}); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if _, err := svc.CloseActiveSession(ctx, "user-c", "logout", types.EndedByUser); err != nil {
		t.Fatalf("CloseActiveSession: %v", err)
	}

	b := NewBroadcaster(store, tracker, broadcast.Noop{}, time.Second, logger)
	agents, err := b.Compose(ctx)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if len(agents) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(agents))
	}
	// Sorted by user ID
	if agents[0].UserID != "user-a" || agents[1].UserID != "user-b" {
		t.Errorf("snapshot order: %s, %s", agents[0].UserID, agents[1].UserID)
	}
	if agents[0].Status != types.StatusBreak {
		t.Errorf("user-a status = %s, want BREAK", agents[0].Status)
	}
	if agents[1].Status != types.StatusAvailable {
		t.Errorf("user-b status = %s, want AVAILABLE", agents[1].Status)
	}
	if agents[0].Username != "alice" {
		t.Errorf("username = %s", agents[0].Username)
	}
}

func TestComposeDuration(t *testing.T) {
	store := storage.NewMemoryStore()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	tracker := livecalls.NewTracker(broadcast.Noop{}, nil, logger)
	ctx := context.Background()

	loginAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	sess := &types.AgentSession{
		ID:             "sess-1",
		UserID:         "user-1",
		LoginAt:        loginAt,
		LastActivityAt: loginAt,
		IsActive:       true,
		InitialStatus:  types.StatusAvailable,
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	b := NewBroadcaster(store, tracker, broadcast.Noop{}, time.Second, logger)
	b.now = func() time.Time { return loginAt.Add(90 * time.Second) }

	agents, err := b.Compose(ctx)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("snapshot size = %d", len(agents))
	}
	if agents[0].DurationSeconds != 90 {
		t.Errorf("duration = %d, want 90", agents[0].DurationSeconds)
	}
}

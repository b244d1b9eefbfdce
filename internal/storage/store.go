package storage

import (
	"context"
	"time"

	"github.com/dialtrack/backend/internal/types"
)

// Store is the persistence contract of the presence engine. Lookups that
// find nothing return (nil, nil); an error always means the store itself
// failed.
type Store interface {
	// Sessions
	FindActiveSession(ctx context.Context, userID string) (*types.AgentSession, error)
	CreateSession(ctx context.Context, s *types.AgentSession) error
	UpdateSession(ctx context.Context, s *types.AgentSession) error
	ListActiveSessions(ctx context.Context) ([]types.AgentSession, error)
	ListSessionsSince(ctx context.Context, since time.Time) ([]types.AgentSession, error)
	ListUserSessionsSince(ctx context.Context, userID string, since time.Time) ([]types.AgentSession, error)

	// Presence events (append-only)
	AppendEvent(ctx context.Context, e *types.PresenceEvent) error
	FindLastStatusEvent(ctx context.Context, sessionID string) (*types.PresenceEvent, error)

	// Breaks
	CreateBreak(ctx context.Context, b *types.AgentBreak) error
	FindOpenBreak(ctx context.Context, sessionID string) (*types.AgentBreak, error)
	UpdateBreak(ctx context.Context, b *types.AgentBreak) error

	// Heartbeats
	AppendHeartbeat(ctx context.Context, hb *types.Heartbeat) error

	// Extension directory
	FindAgentExtension(ctx context.Context, userID string) (*types.AgentExtension, error)
	PutAgentExtension(ctx context.Context, ext *types.AgentExtension) error

	TruncateAll(ctx context.Context) error
}

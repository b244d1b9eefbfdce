package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dialtrack/backend/internal/types"
)

// MemoryStore keeps all records in process memory. Used when
// DYNAMO_MODE=none and by tests. Not suitable for multi-instance
// deployments: the single-active-session invariant only holds within
// one process.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*types.AgentSession   // sessionID -> session
	events     map[string][]types.PresenceEvent // sessionID -> events in append order
	breaks     map[string][]types.AgentBreak    // sessionID -> breaks in append order
	heartbeats []types.Heartbeat
	extensions map[string]*types.AgentExtension // userID -> extension
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*types.AgentSession),
		events:     make(map[string][]types.PresenceEvent),
		breaks:     make(map[string][]types.AgentBreak),
		extensions: make(map[string]*types.AgentExtension),
	}
}

func (s *MemoryStore) FindActiveSession(_ context.Context, userID string) (*types.AgentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *types.AgentSession
	for _, sess := range s.sessions {
		if sess.UserID != userID || !sess.IsActive {
			continue
		}
		if latest == nil || sess.LoginAt.After(latest.LoginAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, sess *types.AgentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, sess *types.AgentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *MemoryStore) ListActiveSessions(_ context.Context) ([]types.AgentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.AgentSession
	for _, sess := range s.sessions {
		if sess.IsActive {
			out = append(out, *sess)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *MemoryStore) ListSessionsSince(_ context.Context, since time.Time) ([]types.AgentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.AgentSession
	for _, sess := range s.sessions {
		if sessionOverlapsSince(sess, since) {
			out = append(out, *sess)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *MemoryStore) ListUserSessionsSince(_ context.Context, userID string, since time.Time) ([]types.AgentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.AgentSession
	for _, sess := range s.sessions {
		if sess.UserID == userID && sessionOverlapsSince(sess, since) {
			out = append(out, *sess)
		}
	}
	sortSessions(out)
	return out, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *types.PresenceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.SessionID] = append(s.events[e.SessionID], *e)
	return nil
}

func (s *MemoryStore) FindLastStatusEvent(_ context.Context, sessionID string) (*types.PresenceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[sessionID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ToStatus != "" {
			copied := events[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateBreak(_ context.Context, b *types.AgentBreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.breaks[b.SessionID] = append(s.breaks[b.SessionID], *b)
	return nil
}

func (s *MemoryStore) FindOpenBreak(_ context.Context, sessionID string) (*types.AgentBreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	breaks := s.breaks[sessionID]
	for i := len(breaks) - 1; i >= 0; i-- {
		if breaks[i].EndAt == nil {
			copied := breaks[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateBreak(_ context.Context, b *types.AgentBreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	breaks := s.breaks[b.SessionID]
	for i := range breaks {
		if breaks[i].ID == b.ID {
			breaks[i] = *b
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) AppendHeartbeat(_ context.Context, hb *types.Heartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heartbeats = append(s.heartbeats, *hb)
	return nil
}

func (s *MemoryStore) FindAgentExtension(_ context.Context, userID string) (*types.AgentExtension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ext, ok := s.extensions[userID]
	if !ok {
		return nil, nil
	}
	copied := *ext
	return &copied, nil
}

func (s *MemoryStore) PutAgentExtension(_ context.Context, ext *types.AgentExtension) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ext
	s.extensions[ext.UserID] = &copied
	return nil
}

func (s *MemoryStore) TruncateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*types.AgentSession)
	s.events = make(map[string][]types.PresenceEvent)
	s.breaks = make(map[string][]types.AgentBreak)
	s.heartbeats = nil
	s.extensions = make(map[string]*types.AgentExtension)
	return nil
}

// Events returns all events for a session in append order. Test helper,
// not part of the Store interface.
func (s *MemoryStore) Events(sessionID string) []types.PresenceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PresenceEvent, len(s.events[sessionID]))
	copy(out, s.events[sessionID])
	return out
}

// Breaks returns all breaks for a session in append order. Test helper.
func (s *MemoryStore) Breaks(sessionID string) []types.AgentBreak {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.AgentBreak, len(s.breaks[sessionID]))
	copy(out, s.breaks[sessionID])
	return out
}

// HeartbeatCount returns the number of stored heartbeat rows. Test helper.
func (s *MemoryStore) HeartbeatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.heartbeats)
}

// sessionOverlapsSince reports whether the session was live at any point
// at or after the cutoff
func sessionOverlapsSince(sess *types.AgentSession, since time.Time) bool {
	if !sess.LoginAt.Before(since) {
		return true
	}
	if sess.IsActive {
		return true
	}
	return sess.LogoutAt != nil && !sess.LogoutAt.Before(since)
}

func sortSessions(sessions []types.AgentSession) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LoginAt.Equal(sessions[j].LoginAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].LoginAt.Before(sessions[j].LoginAt)
	})
}

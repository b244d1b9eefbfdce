package types

import "time"

// AgentStatus represents the presence status of an agent within a session
type AgentStatus string

const (
	StatusOffline   AgentStatus = "OFFLINE"
	StatusAvailable AgentStatus = "AVAILABLE"
	StatusOnCall    AgentStatus = "ON_CALL"
	StatusIdle      AgentStatus = "IDLE"
	StatusBreak     AgentStatus = "BREAK"
)

// AllStatuses lists every valid agent status
var AllStatuses = []AgentStatus{
	StatusOffline,
	StatusAvailable,
	StatusOnCall,
	StatusIdle,
	StatusBreak,
}

// ValidStatus reports whether s is one of the five defined statuses
func ValidStatus(s AgentStatus) bool {
	switch s {
	case StatusOffline, StatusAvailable, StatusOnCall, StatusIdle, StatusBreak:
		return true
	}
	return false
}

// EventType classifies a presence event
type EventType string

const (
	EventLogin        EventType = "LOGIN"
	EventLogout       EventType = "LOGOUT"
	EventHeartbeat    EventType = "HEARTBEAT"
	EventStatusChange EventType = "STATUS_CHANGE"
	EventBreakStart   EventType = "BREAK_START"
	EventBreakEnd     EventType = "BREAK_END"
	EventIdleAuto     EventType = "IDLE_AUTO"
)

// EndedBy records who terminated a session or break
type EndedBy string

const (
	EndedByUser   EndedBy = "user"
	EndedBySystem EndedBy = "system"
)

// AgentSession is one login period for an agent. At most one session per
// user may have IsActive=true at any time.
type AgentSession struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	Username       string      `json:"username,omitempty"`
	LoginAt        time.Time   `json:"loginAt"`
	LogoutAt       *time.Time  `json:"logoutAt,omitempty"`
	LoginIP        string      `json:"loginIp,omitempty"`
	UserAgent      string      `json:"userAgent,omitempty"`
	IsActive       bool        `json:"isActive"`
	InitialStatus  AgentStatus `json:"initialStatus"`
	LastActivityAt time.Time   `json:"lastActivityAt"`
	EndedBy        EndedBy     `json:"endedBy,omitempty"`
	EndReason      string      `json:"endReason,omitempty"`
}

// PresenceEvent is one row of the append-only presence audit trail.
// The current status of a session is always the most recent event whose
// ToStatus is non-empty, falling back to the session's InitialStatus.
type PresenceEvent struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	SessionID  string         `json:"sessionId"`
	EventType  EventType      `json:"eventType"`
	FromStatus AgentStatus    `json:"fromStatus,omitempty"`
	ToStatus   AgentStatus    `json:"toStatus,omitempty"`
	TS         time.Time      `json:"ts"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// AgentBreak is one break interval nested inside a session. At most one
// break per session may be open (EndAt == nil).
type AgentBreak struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	SessionID     string     `json:"sessionId"`
	BreakReasonID string     `json:"breakReasonId,omitempty"`
	StartAt       time.Time  `json:"startAt"`
	EndAt         *time.Time `json:"endAt,omitempty"`
	EndedBy       EndedBy    `json:"endedBy,omitempty"`
}

// Heartbeat is a single liveness ping from an agent client
type Heartbeat struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	SessionID   string         `json:"sessionId"`
	ClientState map[string]any `json:"clientState,omitempty"`
	IP          string         `json:"ip,omitempty"`
	TS          time.Time      `json:"ts"`
}

// AgentExtension maps an agent to their assigned telephony extension and DID
type AgentExtension struct {
	UserID    string `json:"userId"`
	Extension string `json:"extension"`
	DID       string `json:"did,omitempty"`
}

// PresenceUpdate is the payload broadcast to managers on a status transition
type PresenceUpdate struct {
	UserID    string      `json:"userId"`
	SessionID string      `json:"sessionId"`
	From      AgentStatus `json:"from"`
	To        AgentStatus `json:"to"`
	Source    string      `json:"source,omitempty"` // "auto" when set by the idle sweep
}

// SessionChange is the payload broadcast when a session opens or closes
type SessionChange struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// BreakChange is the payload broadcast when a break starts or ends
type BreakChange struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	BreakID   string `json:"breakId,omitempty"`
	ReasonID  string `json:"reasonId,omitempty"`
}

// AgentPresence is one entry of the manager snapshot feed
type AgentPresence struct {
	UserID          string      `json:"userId"`
	Username        string      `json:"username,omitempty"`
	SessionID       string      `json:"sessionId"`
	Status          AgentStatus `json:"status"`
	LoginAt         time.Time   `json:"loginAt"`
	LastActivityAt  time.Time   `json:"lastActivityAt"`
	DurationSeconds int64       `json:"durationSeconds"`
}

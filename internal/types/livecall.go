package types

import "time"

// CallPhase is the phase of an in-flight call, independent of agent status
type CallPhase string

const (
	PhaseDialing    CallPhase = "dialing"
	PhaseRinging    CallPhase = "ringing"
	PhaseConnecting CallPhase = "connecting"
	PhaseConnected  CallPhase = "connected"
	PhaseEnded      CallPhase = "ended"
)

// ValidPhase reports whether p is one of the five defined call phases
func ValidPhase(p CallPhase) bool {
	switch p {
	case PhaseDialing, PhaseRinging, PhaseConnecting, PhaseConnected, PhaseEnded:
		return true
	}
	return false
}

// LiveCallStatus values shown on the dashboard. Pre-connect phases carry
// the phase name; a connected call is promoted to "on_call".
const LiveCallOnCall = "on_call"

// LiveCall is the ephemeral per-agent snapshot of the call they are
// currently engaged with. Held in memory only; rebuilt empty on restart.
type LiveCall struct {
	UserID      string     `json:"userId"`
	Username    string     `json:"username,omitempty"`
	CallID      string     `json:"callId"`
	Status      string     `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	Source      string     `json:"source,omitempty"`
	Destination string     `json:"destination,omitempty"`
	DID         string     `json:"did,omitempty"`
	Direction   string     `json:"direction,omitempty"`
	Action      string     `json:"action,omitempty"`

	// UpdatedAt is the last time any phase event touched this entry.
	// Used by the stale sweeper, never sent to clients.
	UpdatedAt time.Time `json:"-"`
}

// CallDetails carries the optional metadata of a phase update. Empty
// fields leave the prior entry's values untouched.
type CallDetails struct {
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	DID         string `json:"did,omitempty"`
	Direction   string `json:"direction,omitempty"`
	Action      string `json:"action,omitempty"`
}

// PhaseAck is echoed to the agent after each phase transition
type PhaseAck struct {
	CallID string `json:"callId"`
}

package broadcast

// Envelope is the wire format of every WebSocket message sent by the
// server. Event names follow the "domain:action" convention, e.g.
// "presence:update" or "live:calls:update".
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broadcaster fans events out to connected WebSocket clients. Both
// methods are fire-and-forget; delivery to slow clients is best-effort.
type Broadcaster interface {
	// EmitToUser sends an event to every connection of a single user.
	EmitToUser(userID, event string, payload any)

	// EmitToManagers sends an event to every connection with a
	// manager or superadmin role.
	EmitToManagers(event string, payload any)
}

// Noop discards all events. Used in tests and while wiring up.
type Noop struct{}

func (Noop) EmitToUser(string, string, any) {}
func (Noop) EmitToManagers(string, any)     {}

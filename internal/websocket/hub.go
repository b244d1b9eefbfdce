package websocket

import (
	"encoding/json"
	"sync"

	"github.com/dialtrack/backend/internal/broadcast"
	"github.com/dialtrack/backend/internal/metrics"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and routes events to them.
// It implements broadcast.Broadcaster: agents receive their own echo
// stream, managers and superadmins receive the manager stream.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	// Logger
	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Str("user_id", client.userID).
				Str("role", client.role).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Str("user_id", client.userID).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()
		}
	}
}

// EmitToUser sends an event to every connection of a single user
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.emit(func(c *Client) bool { return c.userID == userID }, event, payload)
}

// EmitToManagers sends an event to every manager and superadmin connection
func (h *Hub) EmitToManagers(event string, payload any) {
	h.emit(func(c *Client) bool { return c.isManager }, event, payload)
}

// emit marshals the envelope once and delivers it to matching clients
func (h *Hub) emit(match func(*Client) bool, event string, payload any) {
	data, err := json.Marshal(broadcast.Envelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, close and remove it
			close(client.send)
			delete(h.clients, client)
			metrics.Get().RecordWebSocketDisconnect()
			h.logger.Warn().
				Str("client_id", client.id).
				Str("user_id", client.userID).
				Msg("client send buffer full, closing connection")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ManagerCount returns the number of connected manager-role clients
func (h *Hub) ManagerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for client := range h.clients {
		if client.isManager {
			count++
		}
	}
	return count
}

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dialtrack/backend/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Session metrics
	SessionsOpenedTotal   int64
	SessionsClosedTotal   int64
	SessionsTimedOutTotal int64

	// Presence metrics
	StatusChangesTotal int64
	AutoIdleTotal      int64
	HeartbeatsTotal    int64
	BreaksStartedTotal int64
	BreaksEndedTotal   int64

	// Live call metrics
	PhaseUpdatesTotal    int64
	StaleCallsSweptTotal int64

	// Sweep metrics
	SweepCyclesTotal  int64
	lastSweepDuration time.Duration

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	activeConnections            int64

	// Agent distribution, refreshed by the snapshot broadcaster
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int
	liveCalls      int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			agentsByStatus:    make(map[types.AgentStatus]int),
			httpRequestsTotal: make(map[string]map[int]int64),
			startTime:         time.Now(),
		}
	})
	return instance
}

// RecordSessionOpened increments the sessions opened counter
func (m *Metrics) RecordSessionOpened() {
	m.mu.Lock()
	m.SessionsOpenedTotal++
	m.mu.Unlock()
}

// RecordSessionClosed increments the sessions closed counter. timedOut
// marks closes forced by the sweep.
func (m *Metrics) RecordSessionClosed(timedOut bool) {
	m.mu.Lock()
	m.SessionsClosedTotal++
	if timedOut {
		m.SessionsTimedOutTotal++
	}
	m.mu.Unlock()
}

// RecordStatusChange increments the status change counter
func (m *Metrics) RecordStatusChange() {
	m.mu.Lock()
	m.StatusChangesTotal++
	m.mu.Unlock()
}

// RecordAutoIdle increments the auto-idle counter
func (m *Metrics) RecordAutoIdle() {
	m.mu.Lock()
	m.AutoIdleTotal++
	m.mu.Unlock()
}

// RecordHeartbeat increments the heartbeat counter
func (m *Metrics) RecordHeartbeat() {
	m.mu.Lock()
	m.HeartbeatsTotal++
	m.mu.Unlock()
}

// RecordBreakStarted increments the breaks started counter
func (m *Metrics) RecordBreakStarted() {
	m.mu.Lock()
	m.BreaksStartedTotal++
	m.mu.Unlock()
}

// RecordBreakEnded increments the breaks ended counter
func (m *Metrics) RecordBreakEnded() {
	m.mu.Lock()
	m.BreaksEndedTotal++
	m.mu.Unlock()
}

// RecordPhaseUpdate increments the call phase update counter
func (m *Metrics) RecordPhaseUpdate() {
	m.mu.Lock()
	m.PhaseUpdatesTotal++
	m.mu.Unlock()
}

// RecordStaleCallSwept increments the stale live call eviction counter
func (m *Metrics) RecordStaleCallSwept() {
	m.mu.Lock()
	m.StaleCallsSweptTotal++
	m.mu.Unlock()
}

// RecordSweepCycle records a presence sweep pass
func (m *Metrics) RecordSweepCycle(duration time.Duration) {
	m.mu.Lock()
	m.SweepCyclesTotal++
	m.lastSweepDuration = duration
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// UpdateAgentStats refreshes the agent distribution gauges
func (m *Metrics) UpdateAgentStats(agents []types.AgentPresence, liveCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)
	m.liveCalls = liveCalls

	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("dialtrack_uptime_seconds", time.Since(m.startTime).Seconds())

		// Session metrics
		write("dialtrack_sessions_opened_total", m.SessionsOpenedTotal)
		write("dialtrack_sessions_closed_total", m.SessionsClosedTotal)
		write("dialtrack_sessions_timed_out_total", m.SessionsTimedOutTotal)

		// Presence metrics
		write("dialtrack_status_changes_total", m.StatusChangesTotal)
		write("dialtrack_auto_idle_total", m.AutoIdleTotal)
		write("dialtrack_heartbeats_total", m.HeartbeatsTotal)
		write("dialtrack_breaks_started_total", m.BreaksStartedTotal)
		write("dialtrack_breaks_ended_total", m.BreaksEndedTotal)

		// Live call metrics
		write("dialtrack_call_phase_updates_total", m.PhaseUpdatesTotal)
		write("dialtrack_stale_calls_swept_total", m.StaleCallsSweptTotal)
		write("dialtrack_live_calls", m.liveCalls)

		// Sweep metrics
		write("dialtrack_sweep_cycles_total", m.SweepCyclesTotal)
		write("dialtrack_sweep_duration_seconds", m.lastSweepDuration.Seconds())

		// WebSocket metrics
		write("dialtrack_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("dialtrack_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("dialtrack_websocket_active_connections", m.activeConnections)

		// Agent metrics
		write("dialtrack_agents_total", m.totalAgents)
		for status, count := range m.agentsByStatus {
			write("dialtrack_agents_by_status", count, "status", string(status))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("dialtrack_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

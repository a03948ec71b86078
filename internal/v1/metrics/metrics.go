package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the chat server.
//
// Naming convention: namespace_subsystem_name
// - namespace: chathub (application-level grouping)
// - subsystem: websocket, room (feature-level grouping)
// - name: specific metric (connections_active, frames_dropped_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms)
// - Counter: Cumulative events (messages broadcast, frames dropped)

var (
	// ActiveConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chathub",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live room actors (Gauge - current state)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// EventsBroadcast counts every server event fanned out by a room (CounterVec - cumulative)
	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "events_broadcast_total",
		Help:      "Total server events broadcast to room subscribers",
	}, []string{"event_type"})

	// FramesDropped counts frames lost by lagging subscribers (Counter - cumulative)
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped because a subscriber buffer was full",
	})

	// ExpiredRooms counts rooms reaped by the TTL sweeper (Counter - cumulative)
	ExpiredRooms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chathub",
		Subsystem: "room",
		Name:      "rooms_expired_total",
		Help:      "Total rooms removed after sitting empty past their TTL",
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}

// Package metrics holds the Prometheus instruments for the presence core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpenConnections counts currently open websockets.
	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_open_connections",
		Help: "Number of currently open websocket connections.",
	})

	// LoadedRooms counts room engines currently resident.
	LoadedRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_loaded_rooms",
		Help: "Number of room engines currently loaded.",
	})

	// Participants counts attached participants across all rooms.
	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_participants",
		Help: "Number of participants attached across all rooms.",
	})

	// Spectators counts attached spectators across all rooms.
	Spectators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_spectators",
		Help: "Number of spectators attached across all rooms.",
	})

	// FramesBroadcast counts frames fanned out to sockets.
	FramesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_frames_broadcast_total",
		Help: "Total frames enqueued to sockets by room engines.",
	})

	// FramesDropped counts frames dropped because a socket's outbound
	// queue was full.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_frames_dropped_total",
		Help: "Total frames dropped due to a full outbound queue.",
	})

	// ChatPersisted counts chat messages written to the store.
	ChatPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_chat_persisted_total",
		Help: "Total chat messages persisted.",
	})

	// AuthFailures counts rejected auth handshakes.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_auth_failures_total",
		Help: "Total failed websocket auth handshakes.",
	})

	// CommandsRateLimited counts commands dropped by per-socket ceilings.
	CommandsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_commands_rate_limited_total",
		Help: "Total socket commands dropped by rate limiting.",
	})
)

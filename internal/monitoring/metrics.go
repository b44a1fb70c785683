package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus collectors for the broker, scraped from /metrics.
var (
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_connections_total",
		Help: "Total number of WebSocket connections accepted",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_connections_active",
		Help: "Current number of active WebSocket connections",
	})

	ConnectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_connections_rejected_total",
		Help: "Connections rejected before upgrade, by reason",
	}, []string{"reason"})

	DisconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_disconnects_total",
		Help: "Connection closures by reason",
	}, []string{"reason"})

	ChannelsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_channels_active",
		Help: "Current number of channels with at least one member",
	})

	MessagesForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_forwarded_total",
		Help: "Envelopes fanned out to channel members, by envelope type",
	}, []string{"type"})

	LocalCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_local_commands_total",
		Help: "Commands served by the broker itself, by command and status",
	}, []string{"command", "status"})

	CommandsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_commands_completed_total",
		Help: "Forwarded requests categorized by the matching response",
	}, []string{"command", "status"})

	SendQueueOverflow = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_send_queue_overflow_total",
		Help: "Connections closed because their outbound queue filled",
	})

	DroppedFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_dropped_frames_total",
		Help: "Inbound frames dropped without routing, by reason",
	}, []string{"reason"})

	TrackedRequestsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_tracked_requests_swept_total",
		Help: "Provisional request-tracking entries removed as stuck",
	})

	SnifferRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sniffer_requests_total",
		Help: "Requests observed on the deprecated SSE endpoint",
	}, []string{"path"})
)

func init() {
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionsRejected)
	prometheus.MustRegister(DisconnectsTotal)
	prometheus.MustRegister(ChannelsActive)
	prometheus.MustRegister(MessagesForwarded)
	prometheus.MustRegister(LocalCommands)
	prometheus.MustRegister(CommandsCompleted)
	prometheus.MustRegister(SendQueueOverflow)
	prometheus.MustRegister(DroppedFrames)
	prometheus.MustRegister(TrackedRequestsSwept)
	prometheus.MustRegister(SnifferRequests)
}

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently connected clients.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_ws_connections_active",
		Help: "Number of currently connected WebSocket clients",
	})

	// MessagesReceivedTotal counts inbound protocol messages.
	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_ws_messages_received_total",
		Help: "Total inbound WebSocket messages",
	})

	// MessagesSentTotal counts outbound protocol messages actually written.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_ws_messages_sent_total",
		Help: "Total outbound WebSocket messages written",
	})

	// MessagesDroppedTotal counts messages dropped on full send buffers.
	MessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_ws_messages_dropped_total",
		Help: "Total messages dropped because a client send buffer was full",
	})

	// BroadcastsTotal counts bid-list broadcasts fanned out to subscribers.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_ws_broadcasts_total",
		Help: "Total bid-list broadcasts fanned out to subscribers",
	})

	// MatchBroadcasts counts sweep-driven match announcements.
	MatchBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_ws_match_broadcasts_total",
		Help: "Total match announcements broadcast by the deadline sweep",
	})

	// RejectionsTotal counts protocol rejections by code.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_ws_rejections_total",
		Help: "Total protocol rejections by error code",
	}, []string{"code"})
)

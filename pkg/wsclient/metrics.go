package wsclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedGauge is 1 while the client holds a live relayer connection.
	ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_client_connected",
		Help: "Whether the client currently holds a live relayer connection",
	})

	// MessagesSentTotal counts outbound envelopes by message type.
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_client_messages_sent_total",
		Help: "Total envelopes sent to the relayer by message type",
	}, []string{"type"})

	// MessagesReceivedTotal counts inbound envelopes by message type.
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_client_messages_received_total",
		Help: "Total envelopes received from the relayer by message type",
	}, []string{"type"})

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_client_reconnect_attempts_total",
		Help: "Total reconnection attempts",
	})

	// ReconnectFailuresTotal counts failed reconnection attempts.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_client_reconnect_failures_total",
		Help: "Total failed reconnection attempts",
	})
)

package rpcguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StateGauge is 0 while closed, 1 while open.
	StateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_rpc_breaker_open",
		Help: "Whether the RPC circuit breaker is open (1) or closed (0)",
	})

	// OpensTotal counts closed -> open transitions.
	OpensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_rpc_breaker_opens_total",
		Help: "Total number of times the RPC circuit breaker opened",
	})

	// RejectedTotal counts calls rejected while the breaker was open.
	RejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_rpc_breaker_rejected_total",
		Help: "Total number of RPC calls rejected by the open breaker",
	})
)

package nonce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal counts nonce lookups by source.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_nonce_lookups_total",
			Help: "Total number of nonce lookups",
		},
		[]string{"source"},
	)

	// LookupFailuresTotal counts failed chain reads.
	LookupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_nonce_lookup_failures_total",
		Help: "Total number of failed nonce chain reads",
	})
)

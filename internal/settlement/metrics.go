package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PreparesTotal counts settlement calls assembled.
	PreparesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_settlement_prepares_total",
		Help: "Total number of settlement calls prepared",
	})

	// PrepareFailuresTotal counts aborted handoffs by reason.
	PrepareFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_settlement_prepare_failures_total",
			Help: "Total number of settlement preparations aborted",
		},
		[]string{"reason"},
	)
)

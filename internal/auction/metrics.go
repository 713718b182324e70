package auction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreatedTotal counts auction sessions created.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_auction_sessions_created_total",
		Help: "Total number of auction sessions created",
	})

	// LiveSessions tracks sessions currently held by the store.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_auction_sessions_live",
		Help: "Number of auction sessions held in the store",
	})

	// BidsAcceptedTotal counts bids accepted into sessions.
	BidsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_auction_bids_accepted_total",
		Help: "Total number of bids accepted into auction sessions",
	})

	// MatchesTotal counts Open -> Matched transitions.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_auction_matches_total",
		Help: "Total number of auctions matched to a winning bid",
	})

	// ExpiriesTotal counts Open -> Expired transitions.
	ExpiriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_auction_expiries_total",
		Help: "Total number of auctions expired without a match",
	})

	// CancellationsTotal counts Open -> Cancelled transitions.
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_auction_cancellations_total",
		Help: "Total number of auctions cancelled by their maker",
	})
)

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "refledger",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	CommissionCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "refledger",
			Name:      "commission_credits_total",
			Help:      "Referred actions credited, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	Bindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "refledger",
			Name:      "inviter_bindings_total",
			Help:      "Inviter binding attempts by outcome",
		},
		[]string{"outcome"},
	)

	Drawings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "refledger",
			Name:      "drawings_total",
			Help:      "Drawing requests by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	StakeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "refledger",
			Name:      "stake_events_total",
			Help:      "Pool deposit/withdraw events seen on chain",
		},
		[]string{"kind"},
	)

	GasCeiling = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "refledger",
			Name:      "transfer_gas_ceiling",
			Help:      "Gas limit used for payout transfers after the safety margin",
			Buckets:   prometheus.ExponentialBuckets(21000, 1.5, 10),
		},
	)
)

// Outcome labels shared by the counters above.
const (
	OutcomeOk        = "ok"
	OutcomeRejected  = "rejected"
	OutcomePending   = "pending"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reconcile results.
const (
	ResultUpdated  = "updated"
	ResultNoBudget = "no_budget"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

var (
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Budget bucket reconciliations by outcome",
		},
		[]string{"result"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time to recompute and store one bucket's spend",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Expense events handed to the broker",
		},
		[]string{"type", "status"},
	)

	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Expense events processed by the worker",
		},
		[]string{"type", "status"},
	)

	SummaryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_cache_total",
			Help:      "Monthly summary cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
	)

	SuspiciousRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests matching known attack patterns",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReconcileTotal, ReconcileDuration,
		EventsPublishedTotal, EventsConsumedTotal,
		SummaryCacheTotal,
		RateLimitedTotal, SuspiciousRequestsTotal,
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conpanion_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TokensIssued counts verification/reset tokens generated, by purpose.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conpanion_tokens_issued_total",
			Help: "Total number of single-use tokens generated",
		},
		[]string{"purpose"},
	)

	// EmailsSent counts outbound auth emails by kind (verify|reset) and result.
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conpanion_auth_emails_total",
			Help: "Total number of auth emails dispatched",
		},
		[]string{"kind", "result"},
	)

	// ActiveSessions tracks sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conpanion_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conpanion_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

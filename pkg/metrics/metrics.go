package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recmind_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// TokenRefreshes counts refresh-token exchanges by result (success|failure).
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recmind_token_refreshes_total",
			Help: "Total number of access-token refresh attempts",
		},
		[]string{"result"},
	)

	// Registrations counts local registrations by outcome (created|resent|conflict).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recmind_registrations_total",
			Help: "Total number of registration requests",
		},
		[]string{"outcome"},
	)

	// ActiveSessions tracks accounts currently holding a refresh token.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recmind_active_sessions",
			Help: "Number of accounts with a live refresh token",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recmind_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

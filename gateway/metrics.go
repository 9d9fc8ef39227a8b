package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts gateway requests by route and outcome.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"route", "outcome"},
	)

	// fallbackAttemptsTotal counts failed attempts that triggered fallback,
	// by target provider and retry reason.
	fallbackAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fallback_attempts_total",
			Help: "Total number of failed attempts that advanced the fallback chain",
		},
		[]string{"provider", "reason"},
	)

	// failuresTotal counts terminal request failures by classification.
	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_failures_total",
			Help: "Total number of terminally failed requests by error class",
		},
		[]string{"class"},
	)

	// requestDuration tracks end-to-end request latency per route.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Gateway request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the invoice fraud backend. Registered via
// promauto on the default registry; exposed on /metrics.

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ifd",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ifd",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method", "handler"},
	)

	// Engine metrics
	SignalsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ifd",
			Subsystem: "engine",
			Name:      "signals_emitted_total",
			Help:      "Fraud signals emitted, by code and severity",
		},
		[]string{"code", "severity"},
	)

	VerdictsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ifd",
			Subsystem: "engine",
			Name:      "verdicts_total",
			Help:      "Risk verdicts computed, by level",
		},
		[]string{"level"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ifd",
			Subsystem: "extraction",
			Name:      "documents_total",
			Help:      "Document extraction attempts, by outcome",
		},
		[]string{"status"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ifd",
			Subsystem: "engine",
			Name:      "scoring_duration_seconds",
			Help:      "End-to-end signal computation duration per invoice",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	// Cache metrics
	VendorHistoryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ifd",
			Subsystem: "cache",
			Name:      "vendor_history_requests_total",
			Help:      "Vendor history cache lookups, by result",
		},
		[]string{"result"},
	)
)

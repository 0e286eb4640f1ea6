// Package metrics defines the Prometheus instrumentation shared by the
// session, rate limiter, and cache packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks how long each HTTP attempt against the
	// Wayback Machine takes, labeled by logical operation, outcome
	// status, and attempt number.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wayback",
			Subsystem: "session",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP attempts made by the session, per operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status", "attempt"},
	)

	// Retries counts retry attempts issued by the session, by operation.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wayback",
			Subsystem: "session",
			Name:      "retries_total",
			Help:      "Total retry attempts issued by the session.",
		},
		[]string{"operation"},
	)

	// Failures counts requests that ultimately failed, by operation and
	// error classification.
	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wayback",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Total requests that failed after all retries were exhausted.",
		},
		[]string{"operation", "error_class"},
	)

	// RateLimitWait tracks time spent blocked waiting for a rate limit
	// bucket to free up, labeled by bucket name.
	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wayback",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting on the outbound rate limit gate, per bucket.",
			Buckets:   []float64{0, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		},
		[]string{"bucket"},
	)

	// CacheHits and CacheMisses count lookups against the CDX search
	// page cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wayback",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits for CDX search result pages.",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wayback",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses for CDX search result pages.",
		},
	)
)

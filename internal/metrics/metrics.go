// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration records handler latency by route pattern and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// SwapTransitions counts swaps entering each status, creation included.
	SwapTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swap_transitions_total",
		Help: "Total number of swap status transitions by target status",
	}, []string{"to"})

	// SwapConflicts counts lifecycle writes that lost a compare-and-swap race.
	SwapConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swap_conflicts_total",
		Help: "Total number of swap writes rejected because the status changed underneath",
	}, []string{"operation"})

	// RatingsSubmitted counts ratings by value.
	RatingsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_ratings_submitted_total",
		Help: "Total number of ratings submitted by value",
	}, []string{"value"})
)

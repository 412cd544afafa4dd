// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinify",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pinify",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	PlacesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinify",
		Name:      "places_resolved_total",
		Help:      "Add-place submissions by outcome (created or linked).",
	}, []string{"outcome"})

	RatingRecomputeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinify",
		Name:      "rating_recompute_failures_total",
		Help:      "Aggregate rating recomputations that failed after a review mutation.",
	})

	FriendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinify",
		Name:      "friend_requests_total",
		Help:      "Friend request transitions by action.",
	}, []string{"action"})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinify",
		Name:      "notification_failures_total",
		Help:      "E-mail notifications that could not be delivered.",
	})
)

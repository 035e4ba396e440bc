package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lookups counts cache reads by result: hit, miss, expired.
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marvel_cache_lookups_total",
			Help: "Marvel response cache lookups by result",
		},
		[]string{"result"},
	)

	// StoredBytes counts bytes written to Redis.
	StoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marvel_cache_stored_bytes_total",
			Help: "Bytes written to the Marvel response cache",
		},
	)

	// NotModifiedResponses counts 304 answers served from cache.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marvel_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequests counts requests sent with If-None-Match.
	ConditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marvel_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// Errors counts failed cache operations.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marvel_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // get, set, delete
	)
)

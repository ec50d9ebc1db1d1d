package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served from the store by namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_hits_total",
			Help: "Total number of responses served from cache",
		},
		[]string{"namespace"},
	)

	// CacheMisses tracks lookups on known routes that found no entry
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_misses_total",
			Help: "Total number of cache misses on known routes",
		},
		[]string{"namespace"},
	)

	// NotModifiedResponses tracks 304 responses answered by validators
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_not_modified_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheStores tracks responses written to the store
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_stores_total",
			Help: "Total number of responses stored in cache",
		},
		[]string{"namespace"},
	)

	// StoreErrors tracks failed store operations
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "set", "set_multi", "incr"
	)

	// Invalidations tracks dependency groups invalidated
	Invalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "httpcache_invalidations_total",
			Help: "Total number of dependency group invalidations",
		},
	)
)

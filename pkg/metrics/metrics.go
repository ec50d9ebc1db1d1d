// Package metrics provides the Prometheus registry and HTTP instrumentation
// for the cache server. Cache metrics are defined in pkg/cache next to the
// code that records them, to keep packages free of import cycles.
//
// This package also serves as the reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	// RequestsTotal tracks requests by method and status code
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpcache_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "code"},
	)

	// RequestDuration tracks request latency, cache hits included
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpcache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Instrument records RequestsTotal and RequestDuration for next.
func Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(RequestsTotal,
		promhttp.InstrumentHandlerDuration(RequestDuration, next))
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - httpcache_hits_total{namespace} (Counter): Responses served from the store
//   - httpcache_misses_total{namespace} (Counter): Misses on routes with a learned profile
//   - httpcache_not_modified_total (Counter): 304 Not Modified responses
//   - httpcache_stores_total{namespace} (Counter): Responses written to the store
//   - httpcache_store_errors_total{operation} (Counter): Failed store operations
//   - httpcache_invalidations_total (Counter): Dependency groups invalidated
//
// Request Metrics (pkg/metrics):
//   - httpcache_http_requests_total{method, code} (Counter): Requests by method and status
//   - httpcache_http_request_duration_seconds{method} (Histogram): Request latency
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(httpcache_hits_total[5m])) /
//   (sum(rate(httpcache_hits_total[5m])) + sum(rate(httpcache_misses_total[5m])))
//
//   # Store Error Rate
//   sum by (operation) (rate(httpcache_store_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(httpcache_http_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(httpcache_not_modified_total[5m]) / sum(rate(httpcache_http_requests_total[5m]))

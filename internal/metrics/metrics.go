// Package metrics holds the Prometheus collectors for the store boundary, the
// engines and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_store_operations_total",
			Help: "Remote document store operations by result",
		},
		[]string{"operation", "result"}, // result: ok|not_found|error
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediatrack_store_operation_duration_seconds",
			Help:    "Duration of remote document store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Engines
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_mutations_total",
			Help: "Write-through mutations by engine, operation and result",
		},
		[]string{"engine", "operation", "result"},
	)

	SessionLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_session_loads_total",
			Help: "Full mirror reloads by engine and result",
		},
		[]string{"engine", "result"},
	)

	StaleCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_stale_completions_total",
			Help: "Completions discarded because the session changed while they were in flight",
		},
		[]string{"engine"},
	)

	PartialEdgeWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_partial_edge_writes_total",
			Help: "Follow/unfollow double-writes where only the first write succeeded",
		},
		[]string{"operation"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediatrack_active_sessions",
			Help: "Signed-in sessions held by the API process",
		},
	)

	// Catalog
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatrack_catalog_requests_total",
			Help: "Catalog provider requests by operation and result",
		},
		[]string{"operation", "result"}, // result: ok|cache_hit|error|rejected
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediatrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediatrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordStoreOp records one store call.
func RecordStoreOp(operation, result string, d time.Duration) {
	StoreOperations.WithLabelValues(operation, result).Inc()
	StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordMutation records the outcome of an engine mutation.
func RecordMutation(engine, operation string, err error) {
	Mutations.WithLabelValues(engine, operation, result(err)).Inc()
}

func RecordLoad(engine string, err error) {
	SessionLoads.WithLabelValues(engine, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

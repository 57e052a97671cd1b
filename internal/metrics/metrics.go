package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

var (
	// Refresh metrics
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_refresh_total",
			Help: "Total number of pipeline refreshes by outcome",
		},
		[]string{"outcome"}, // "success", "empty", "failed"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gdeltwatch_refresh_duration_seconds",
			Help:    "Duration of pipeline refreshes in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SnapshotEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gdeltwatch_snapshot_events",
			Help: "Number of events in the current snapshot",
		},
	)

	SnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gdeltwatch_snapshot_refreshed_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		},
	)

	// Archive and row metrics
	ArchivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_archives_total",
			Help: "Total number of archives by outcome",
		},
		[]string{"outcome"}, // "processed", "skipped_fetch", "skipped_decode"
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_rows_total",
			Help: "Total number of export rows by outcome",
		},
		[]string{"outcome"},
	)

	// Upstream HTTP metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_upstream_requests_total",
			Help: "Total number of upstream HTTP requests",
		},
		[]string{"status"},
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gdeltwatch_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchiveCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gdeltwatch_archive_cache_hits_total",
			Help: "Total number of archive payloads served from cache",
		},
	)

	ArchiveCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gdeltwatch_archive_cache_misses_total",
			Help: "Total number of archive payloads fetched upstream",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gdeltwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gdeltwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gdeltwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gdeltwatch_websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gdeltwatch_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)

// RecordRefresh records the outcome of one refresh
func RecordRefresh(outcome string, duration time.Duration) {
	RefreshTotal.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

// RecordSnapshot updates the current snapshot gauges
func RecordSnapshot(s *model.Snapshot) {
	SnapshotEvents.Set(float64(len(s.Events)))
	SnapshotAge.Set(float64(s.RefreshedAt.Unix()))
}

// RecordDiagnostics adds a refresh's archive and row counts to the counters
func RecordDiagnostics(d *model.Diagnostics) {
	ArchivesTotal.WithLabelValues("processed").Add(float64(d.ArchivesProcessed))
	for _, s := range d.Skipped {
		ArchivesTotal.WithLabelValues("skipped_" + s.Stage).Inc()
	}

	RowsTotal.WithLabelValues("parsed").Add(float64(d.RowsParsed))
	RowsTotal.WithLabelValues("malformed").Add(float64(d.RowsMalformed))
	RowsTotal.WithLabelValues("bad_timestamp").Add(float64(d.RowsBadTimestamp))
	RowsTotal.WithLabelValues("outside_window").Add(float64(d.RowsOutsideWindow))
	RowsTotal.WithLabelValues("duplicate").Add(float64(d.Duplicates))
	RowsTotal.WithLabelValues("dropped").Add(float64(d.RowsDropped))
}

// RecordUpstreamRequest records one upstream HTTP round trip
func RecordUpstreamRequest(status string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(status).Inc()
	UpstreamDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records an archive cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		ArchiveCacheHits.Inc()
		return
	}
	ArchiveCacheMisses.Inc()
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

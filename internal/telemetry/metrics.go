// Package telemetry provides application-level observability for the intake gateway.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<IGW_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Intake submission outcomes per operation
//   - Blob store and tabular store call outcomes and latency
//   - Audit mirror delivery failures
//   - Database connection pool gauge (polled every 30 s, postgres audit backend only)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template) rather than the raw request URL so
// unmatched paths collapse into a single "<no-route>" series.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics: labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Intake metrics.
//
// IntakeSubmissionsTotal has labels {operation, outcome}. operation is "task" or "file";
// outcome is "success" or the error code returned to the caller
// (bad_request, drive_access_denied, drive_upload_failed, sheets_log_failed, ...).
//
// Example PromQL queries:
//   - Failed uploads:  sum by (outcome) (rate(intake_submissions_total{operation="file",outcome!="success"}[15m]))
var IntakeSubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Total number of intake submissions, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// Upstream metrics: recorded by the storage and audit backends.
//
// StorageOperationsTotal has labels {backend, operation, outcome} where operation is
// "store", "metadata" or "probe" and outcome is "success", "denied", "not_found" or "error".
//
// AuditAppendsTotal has labels {backend, outcome}; an alert on the "error" series catches
// a revoked spreadsheet share before callers notice.
//
// UpstreamCallDuration has labels {target, operation} where target is "storage" or "audit".
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of blob store calls, by backend, operation, and outcome.",
		},
		[]string{"backend", "operation", "outcome"},
	)

	AuditAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Total number of audit row appends to the primary tabular store, by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	AuditMirrorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_mirror_errors_total",
			Help: "Total number of audit rows a mirror sink failed to accept, by sink type.",
		},
		[]string{"sink"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Duration of calls to the blob and tabular stores, by target and operation.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"target", "operation"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool of the postgres audit backend. It is sampled every
// 30 seconds by StartDBStatsCollector rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// ObserveUpstream records the latency of one upstream call since start.
func ObserveUpstream(target, operation string, start time.Time) {
	UpstreamCallDuration.WithLabelValues(target, operation).Observe(time.Since(start).Seconds())
}

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits when the database becomes unreachable, which happens when the
// application shuts down and closes the pool.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

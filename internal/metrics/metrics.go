// Package metrics defines the Prometheus instrumentation for stashbox.
// Metric families are grouped by subsystem; HTTP request metrics come from
// the echoprometheus middleware and are not declared here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Crypto Operations Metrics
var (
	// CryptoOperationsTotal tracks encrypt/decrypt/re-encrypt calls by outcome
	CryptoOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_operations_total",
			Help: "Total crypto operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// CryptoOperationDuration tracks crypto operation latency in seconds
	CryptoOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crypto_operation_duration_seconds",
			Help:    "Crypto operation duration in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		},
		[]string{"operation"},
	)
)

// Envelope Migration Metrics
var (
	// EnvelopesMigratedTotal tracks envelopes successfully rewritten to the current format
	EnvelopesMigratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envelopes_migrated_total",
			Help: "Total envelopes re-encrypted to the current version and format",
		},
	)

	// EnvelopeMigrationFailuresTotal tracks envelopes that could not be migrated
	EnvelopeMigrationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envelope_migration_failures_total",
			Help: "Total envelopes that failed to migrate",
		},
	)

	// MigrationSweepsTotal tracks completed migration sweeps
	MigrationSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_sweeps_total",
			Help: "Total envelope migration sweeps completed",
		},
	)

	// MigrationSweepDuration tracks full-sweep duration in seconds
	MigrationSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "migration_sweep_duration_seconds",
			Help:    "Envelope migration sweep duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)
)

// Secret Access Metrics
var (
	// SecretsRevealedTotal tracks successful plaintext reveals
	SecretsRevealedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secrets_revealed_total",
			Help: "Total successful secret reveals",
		},
	)

	// RevealRateLimitedTotal tracks reveals rejected by the rate limiter
	RevealRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reveal_rate_limited_total",
			Help: "Total secret reveals rejected by the rate limiter",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query latency by query type
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query type
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query type",
		},
		[]string{"query"},
	)
)

// Build Info
var (
	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information (value is always 1)",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetBuildInfo records build metadata as a constant gauge.
func SetBuildInfo(version, commit, goVersion string) {
	buildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// ObserveCryptoOp records one crypto operation's outcome and duration.
func ObserveCryptoOp(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CryptoOperationsTotal.WithLabelValues(operation, status).Inc()
	CryptoOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// Package prometheus provides Prometheus metrics for the configuration toolkit.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modelconf"

var (
	// documentsLoaded is a counter of configuration documents loaded.
	documentsLoaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_loaded_total",
			Help:      "Total number of configuration documents loaded",
		},
	)

	// documentLoadErrors is a counter of document load failures.
	documentLoadErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_load_errors_total",
			Help:      "Total number of configuration document load failures",
		},
	)

	// composeOperations is a counter of composition operations.
	composeOperations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compose_operations_total",
			Help:      "Total number of composition operations",
		},
	)

	// resolveDuration is a histogram of composition duration in seconds.
	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Duration of composition and reference resolution in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// referencesResolved is a counter of interpolation references substituted.
	referencesResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "references_resolved_total",
			Help:      "Total number of interpolation references resolved",
		},
	)

	// resolutionErrors is a counter of failed compositions by failure kind.
	resolutionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_errors_total",
			Help:      "Total number of failed compositions by failure kind",
		},
		[]string{"kind"}, // kind: unresolved, cycle, malformed, interpolation, depth, conflict, definition, load, other
	)

	// snapshotsSaved is a counter of snapshots written to run stores.
	snapshotsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_saved_total",
			Help:      "Total number of snapshots saved by store backend",
		},
		[]string{"backend"}, // backend: memory, redis, s3
	)

	// sweepRuns is a counter of sweeps started.
	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of sweeps started",
		},
	)

	// activeSweepRuns is a gauge of sweeps currently running.
	activeSweepRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sweep_runs",
			Help:      "Number of currently running sweeps",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		documentsLoaded,
		documentLoadErrors,
		composeOperations,
		resolveDuration,
		referencesResolved,
		resolutionErrors,
		snapshotsSaved,
		sweepRuns,
		activeSweepRuns,
	}
)

// Register adds every toolkit collector to the given registry.
func Register(reg *prometheus.Registry) error {
	for _, collector := range allMetrics {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordDocumentLoad records a successful document load.
func RecordDocumentLoad() {
	documentsLoaded.Inc()
}

// RecordDocumentLoadError records a failed document load.
func RecordDocumentLoadError() {
	documentLoadErrors.Inc()
}

// RecordComposeOperation records the start of a composition.
func RecordComposeOperation() {
	composeOperations.Inc()
}

// RecordResolve records the duration of a completed composition.
func RecordResolve(durationSeconds float64) {
	resolveDuration.Observe(durationSeconds)
}

// RecordReferencesResolved records substituted interpolation references.
func RecordReferencesResolved(count int) {
	if count > 0 {
		referencesResolved.Add(float64(count))
	}
}

// RecordResolutionError records a failed composition.
func RecordResolutionError(kind string) {
	resolutionErrors.WithLabelValues(kind).Inc()
}

// RecordSnapshotSaved records a snapshot write to a run store.
func RecordSnapshotSaved(backend string) {
	snapshotsSaved.WithLabelValues(backend).Inc()
}

// RecordSweepStart records a sweep start.
func RecordSweepStart() {
	sweepRuns.Inc()
	activeSweepRuns.Inc()
}

// RecordSweepEnd records a sweep completion.
func RecordSweepEnd() {
	activeSweepRuns.Dec()
}

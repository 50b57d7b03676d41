// Package observability owns the Prometheus collectors of the compilation pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ipmt"

var (
	rowsCompiledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "rows_compiled_total",
		Help:      "Number of person/indicator rows produced by aggregation runs.",
	})

	classifierFallbackCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classify",
		Name:      "fallback_total",
		Help:      "Number of descriptions classified into the Miscellaneous fallback.",
	})

	summaryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summary",
		Name:      "calls_total",
		Help:      "Summary delegate invocations labeled by outcome (ok, error, cached).",
	}, []string{"outcome"})

	summaryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "summary",
		Name:      "call_duration_seconds",
		Help:      "Latency of summary delegate calls.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	rowsUpsertedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "rows_upserted_total",
		Help:      "Number of IPMT rows written, labeled by whether the row was new.",
	}, []string{"created"})

	indicatorsCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "indicators_autocreated_total",
		Help:      "Number of success indicators created on the fly during save.",
	})

	lastSavedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "last_row_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent IPMT row persisted.",
	})

	outboxEnqueuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "enqueued_total",
		Help:      "Number of events written to the outbox, labeled by event type.",
	}, []string{"event_type"})

	exportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "duration_seconds",
		Help:      "Time spent rendering workbooks, labeled by variant.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"variant"})
)

func init() {
	prometheus.MustRegister(
		rowsCompiledCounter,
		classifierFallbackCounter,
		summaryCounter,
		summaryDuration,
		rowsUpsertedCounter,
		indicatorsCreatedCounter,
		lastSavedGauge,
		outboxEnqueuedCounter,
		exportDuration,
	)
}

// RecordRowsCompiled counts rows emitted by one aggregation run.
func RecordRowsCompiled(n int) {
	if n <= 0 {
		return
	}
	rowsCompiledCounter.Add(float64(n))
}

// RecordClassifierFallback counts a Miscellaneous classification.
func RecordClassifierFallback() {
	classifierFallbackCounter.Inc()
}

// ObserveSummary records a delegate call outcome and its latency.
func ObserveSummary(outcome string, elapsed time.Duration) {
	summaryCounter.WithLabelValues(outcome).Inc()
	if outcome != "cached" {
		summaryDuration.Observe(elapsed.Seconds())
	}
}

// RecordRowUpserted counts one IPMT row write and advances the watermark.
func RecordRowUpserted(created bool, ts time.Time) {
	label := "false"
	if created {
		label = "true"
	}
	rowsUpsertedCounter.WithLabelValues(label).Inc()
	if !ts.IsZero() {
		lastSavedGauge.Set(float64(ts.Unix()))
	}
}

// RecordIndicatorCreated counts an indicator created by the save policy.
func RecordIndicatorCreated() {
	indicatorsCreatedCounter.Inc()
}

// ObserveExport records how long a workbook variant took to render.
func ObserveExport(variant string, elapsed time.Duration) {
	exportDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
}

// RecordOutboxEnqueued counts an event committed to the outbox.
func RecordOutboxEnqueued(eventType string) {
	outboxEnqueuedCounter.WithLabelValues(eventType).Inc()
}

package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the script engine.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	AbortsTotal        *prometheus.CounterVec
	CapabilityProbes   *prometheus.CounterVec
	ActiveEvaluations  prometheus.Gauge
	OpsStaged          prometheus.Histogram
	OutputLines        prometheus.Histogram
	ScriptSizeBytes    prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "script",
				Name:      "evaluations_total",
				Help:      "Total number of script evaluations by status.",
			},
			[]string{"status"},
		),

		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "script",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of script evaluations in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		AbortsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "script",
				Name:      "aborts_total",
				Help:      "Total aborted evaluations by reason.",
			},
			[]string{"reason"},
		),

		CapabilityProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "script",
				Name:      "capability_probes_total",
				Help:      "Scripts observed probing withheld capabilities, by pattern.",
			},
			[]string{"pattern"},
		),

		ActiveEvaluations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "script",
				Name:      "active_evaluations",
				Help:      "Number of currently running evaluations.",
			},
		),

		OpsStaged: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "script",
				Name:      "ops_staged",
				Help:      "Document operations staged per evaluation.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),

		OutputLines: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "script",
				Name:      "output_lines",
				Help:      "Captured output lines per evaluation.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		ScriptSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "script",
				Name:      "script_size_bytes",
				Help:      "Size of submitted scripts in bytes.",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
			},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.AbortsTotal,
		m.CapabilityProbes,
		m.ActiveEvaluations,
		m.OpsStaged,
		m.OutputLines,
		m.ScriptSizeBytes,
	)

	return m
}

// RecordEvaluation records metrics for a completed evaluation.
func (m *Metrics) RecordEvaluation(status string, durationSec float64, ops, outputLines int) {
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDuration.Observe(durationSec)
	m.OpsStaged.Observe(float64(ops))
	m.OutputLines.Observe(float64(outputLines))
}

// RecordAbort records an aborted evaluation by reason.
func (m *Metrics) RecordAbort(reason string) {
	m.AbortsTotal.WithLabelValues(reason).Inc()
}

// RecordProbe records a capability probe detection.
func (m *Metrics) RecordProbe(pattern string) {
	m.CapabilityProbes.WithLabelValues(pattern).Inc()
}

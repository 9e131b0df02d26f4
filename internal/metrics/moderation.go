// Package metrics provides Prometheus collectors for the image moderation pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision labels for DecisionsTotal.
const (
	DecisionSafe         = "safe"
	DecisionFlagged      = "flagged"
	DecisionAutoRejected = "auto_rejected"
	DecisionFailOpen     = "fail_open"
)

// Optimization outcome labels for OptimizationsTotal.
const (
	OptimizationSuccess = "success"
	OptimizationFailure = "failure"
	OptimizationSkipped = "skipped"
)

// ModerationMetrics contains all Prometheus metrics for image moderation.
// A nil *ModerationMetrics is valid and records nothing.
type ModerationMetrics struct {
	DecisionsTotal      *prometheus.CounterVec
	AnalyzerFailures    prometheus.Counter
	AnalysisDuration    prometheus.Histogram
	PersistenceFailures prometheus.Counter
	OptimizationsTotal  *prometheus.CounterVec
	BytesSaved          prometheus.Counter
	CompressionCount    prometheus.Gauge
	ReviewActionsTotal  *prometheus.CounterVec
	SuspensionsTotal    prometheus.Counter
}

// NewModerationMetrics creates the collectors and registers them with registry.
func NewModerationMetrics(registry *prometheus.Registry) (*ModerationMetrics, error) {
	m := &ModerationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register moderation metrics: %w", err)
	}
	return m, nil
}

func (m *ModerationMetrics) initMetrics() {
	m.DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_moderation_decisions_total",
		Help: "Total number of per-file moderation decisions by outcome.",
	}, []string{"decision"})

	m.AnalyzerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_moderation_analyzer_failures_total",
		Help: "Total number of analyzer failures that let a file through unmoderated.",
	})

	m.AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_moderation_analysis_duration_seconds",
		Help:    "Duration of image safety analysis in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_moderation_persistence_failures_total",
		Help: "Total number of flagged-image records that could not be stored.",
	})

	m.OptimizationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_optimization_total",
		Help: "Total number of optimization attempts by outcome.",
	}, []string{"outcome"})

	m.BytesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_optimization_saved_bytes_total",
		Help: "Total bytes saved by image compression.",
	})

	m.CompressionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "image_optimization_compression_count",
		Help: "Compression usage reported by the optimization service.",
	})

	m.ReviewActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_review_actions_total",
		Help: "Total number of admin review actions by action.",
	}, []string{"action"})

	m.SuspensionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_review_account_suspensions_total",
		Help: "Total number of accounts suspended through image review.",
	})
}

// RecordDecision counts one per-file decision.
func (m *ModerationMetrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordAnalyzerFailure counts a fail-open pass-through.
func (m *ModerationMetrics) RecordAnalyzerFailure() {
	if m == nil {
		return
	}
	m.AnalyzerFailures.Inc()
	m.DecisionsTotal.WithLabelValues(DecisionFailOpen).Inc()
}

func (m *ModerationMetrics) ObserveAnalysisDuration(seconds float64) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Observe(seconds)
}

func (m *ModerationMetrics) RecordPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// RecordOptimization counts an optimization attempt and the bytes it saved.
func (m *ModerationMetrics) RecordOptimization(outcome string, savedBytes int64, compressionCount int64) {
	if m == nil {
		return
	}
	m.OptimizationsTotal.WithLabelValues(outcome).Inc()
	if savedBytes > 0 {
		m.BytesSaved.Add(float64(savedBytes))
	}
	if compressionCount > 0 {
		m.CompressionCount.Set(float64(compressionCount))
	}
}

// RecordReviewAction counts admin actions, n records at a time for batch operations.
func (m *ModerationMetrics) RecordReviewAction(action string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ReviewActionsTotal.WithLabelValues(action).Add(float64(n))
}

func (m *ModerationMetrics) RecordSuspension() {
	if m == nil {
		return
	}
	m.SuspensionsTotal.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *ModerationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DecisionsTotal.Collect(ch)
	ch <- m.AnalyzerFailures
	ch <- m.AnalysisDuration
	ch <- m.PersistenceFailures
	m.OptimizationsTotal.Collect(ch)
	ch <- m.BytesSaved
	ch <- m.CompressionCount
	m.ReviewActionsTotal.Collect(ch)
	ch <- m.SuspensionsTotal
}

// Describe implements the prometheus.Collector interface.
func (m *ModerationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DecisionsTotal.Describe(ch)
	ch <- m.AnalyzerFailures.Desc()
	ch <- m.AnalysisDuration.Desc()
	ch <- m.PersistenceFailures.Desc()
	m.OptimizationsTotal.Describe(ch)
	ch <- m.BytesSaved.Desc()
	ch <- m.CompressionCount.Desc()
	m.ReviewActionsTotal.Describe(ch)
	ch <- m.SuspensionsTotal.Desc()
}

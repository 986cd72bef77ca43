package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/adjudicator/pkg/config"
)

// EvaluationMetrics tracks case evaluations.
//
// Metrics:
//   - adjudicator_evaluations_total: evaluations by binding outcome and status
//   - adjudicator_evaluation_duration_seconds: evaluation latency
//   - adjudicator_conflicts_total: authority conflicts found
//   - adjudicator_review_required_total: cases routed to human review
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	conflictsTotal     prometheus.Counter
	reviewTotal        prometheus.Counter
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Total number of case evaluations",
			},
			[]string{"outcome", "status"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of case evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),
		conflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "conflicts_total",
				Help:      "Total number of authority conflicts resolved",
			},
		),
		reviewTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "review_required_total",
				Help:      "Total number of cases that need human review",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.conflictsTotal,
		em.reviewTotal,
	)
	return em
}

// RecordEvaluation records one evaluation.
func (em *EvaluationMetrics) RecordEvaluation(outcome, status string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(outcome, status).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}

// RecordConflicts adds n resolved conflicts.
func (em *EvaluationMetrics) RecordConflicts(n int) {
	em.conflictsTotal.Add(float64(n))
}

// RecordReview counts a case routed to human review.
func (em *EvaluationMetrics) RecordReview() {
	em.reviewTotal.Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/adjudicator/pkg/config"
)

// AuditMetrics tracks the audit recorder.
//
// Metrics:
//   - adjudicator_audit_writes_total: records by status (written, failed, dropped)
//   - adjudicator_audit_write_duration_seconds: storage write latency
type AuditMetrics struct {
	writesTotal   *prometheus.CounterVec
	writeDuration prometheus.Histogram
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_writes_total",
				Help:      "Total number of audit records by write status",
			},
			[]string{"status"},
		),
		writeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_write_duration_seconds",
				Help:      "Duration of audit storage writes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
			},
		),
	}

	registry.MustRegister(am.writesTotal, am.writeDuration)
	return am
}

// RecordWrite records one write attempt. Dropped records never reach
// storage and are not timed.
func (am *AuditMetrics) RecordWrite(status string, duration time.Duration) {
	am.writesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		am.writeDuration.Observe(duration.Seconds())
	}
}

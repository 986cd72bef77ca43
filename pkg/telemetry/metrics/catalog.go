package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/rules"
)

// CatalogMetrics tracks catalog loading.
//
// Metrics:
//   - adjudicator_catalog_reloads_total: load attempts by status
//   - adjudicator_catalog_rules: rules in the active catalog, by tier
//   - adjudicator_catalog_last_reload_timestamp_seconds: time of the last successful load
type CatalogMetrics struct {
	reloadsTotal *prometheus.CounterVec
	rules        *prometheus.GaugeVec
	lastReload   prometheus.Gauge
}

// NewCatalogMetrics creates and registers catalog metrics.
func NewCatalogMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CatalogMetrics {
	cm := &CatalogMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of catalog load attempts",
			},
			[]string{"status"},
		),
		rules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_rules",
				Help:      "Number of rules in the active catalog",
			},
			[]string{"tier"},
		),
		lastReload: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_last_reload_timestamp_seconds",
				Help:      "Unix time of the last successful catalog load",
			},
		),
	}

	registry.MustRegister(cm.reloadsTotal, cm.rules, cm.lastReload)
	return cm
}

// RecordReload records a load attempt. The rule gauges follow catalog only
// when it is non-nil; a failed load keeps the previous catalog active.
func (cm *CatalogMetrics) RecordReload(status string, catalog *rules.Catalog) {
	cm.reloadsTotal.WithLabelValues(status).Inc()
	if catalog == nil {
		return
	}

	cm.rules.Reset()
	for _, r := range catalog.Rules() {
		cm.rules.WithLabelValues(r.Tier.Name).Inc()
	}
	cm.lastReload.Set(float64(catalog.LoadedAt().Unix()))
}

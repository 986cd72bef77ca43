package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/adjudicator/pkg/config"
)

// RuleMetrics tracks individual rules.
//
// Metrics:
//   - adjudicator_rule_hits_total: rule fired and produced a decision
//   - adjudicator_rule_misses_total: rule condition did not hold
//   - adjudicator_rule_faults_total: rule condition or action failed
//   - adjudicator_rule_bindings_total: rule produced the binding decision
type RuleMetrics struct {
	hitsTotal     *prometheus.CounterVec
	missesTotal   *prometheus.CounterVec
	faultsTotal   *prometheus.CounterVec
	bindingsTotal *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics.
func NewRuleMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: cfg.Namespace, Name: name, Help: help},
			labels,
		)
	}

	rm := &RuleMetrics{
		hitsTotal:     counter("rule_hits_total", "Total number of times a rule fired", "rule_id", "tier"),
		missesTotal:   counter("rule_misses_total", "Total number of times a rule did not fire", "rule_id", "tier"),
		faultsTotal:   counter("rule_faults_total", "Total number of rule evaluation failures", "rule_id", "stage"),
		bindingsTotal: counter("rule_bindings_total", "Total number of binding decisions per rule", "rule_id", "tier"),
	}

	registry.MustRegister(
		rm.hitsTotal,
		rm.missesTotal,
		rm.faultsTotal,
		rm.bindingsTotal,
	)
	return rm
}

// RecordHit records a rule that fired.
func (rm *RuleMetrics) RecordHit(ruleID, tier string) {
	rm.hitsTotal.WithLabelValues(ruleID, tier).Inc()
}

// RecordMiss records a rule whose condition did not hold.
func (rm *RuleMetrics) RecordMiss(ruleID, tier string) {
	rm.missesTotal.WithLabelValues(ruleID, tier).Inc()
}

// RecordFault records a rule that failed at stage.
func (rm *RuleMetrics) RecordFault(ruleID, stage string) {
	rm.faultsTotal.WithLabelValues(ruleID, stage).Inc()
}

// RecordBinding records the rule that produced the binding decision.
func (rm *RuleMetrics) RecordBinding(ruleID, tier string) {
	rm.bindingsTotal.WithLabelValues(ruleID, tier).Inc()
}

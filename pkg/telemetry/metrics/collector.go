package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/rules"
)

// otherRule is the rule_id label used once the cardinality limit is reached.
const otherRule = "other"

// Collector owns the Prometheus metrics of the adjudicator. It implements
// engine.Observer, manager.ReloadObserver and recorder.WriteObserver, so a
// single collector can be handed to each of those components.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	ruleMetrics       *RuleMetrics
	catalogMetrics    *CatalogMetrics
	auditMetrics      *AuditMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. A nil registry
// gets a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = config.DefaultDurationBuckets()
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		evaluationMetrics:  NewEvaluationMetrics(cfg, registry),
		ruleMetrics:        NewRuleMetrics(cfg, registry),
		catalogMetrics:     NewCatalogMetrics(cfg, registry),
		auditMetrics:       NewAuditMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}
}

// ObserveEvaluation records one finished evaluation.
func (c *Collector) ObserveEvaluation(result *engine.Result, err error, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	status := evaluationStatus(err)
	outcome := "NONE"
	if result != nil {
		outcome = result.Outcome()
	}
	c.evaluationMetrics.RecordEvaluation(outcome, status, duration)

	if result == nil {
		return
	}
	if result.NeedsReview() {
		c.evaluationMetrics.RecordReview()
	}
	if len(result.Conflicts) > 0 {
		c.evaluationMetrics.RecordConflicts(len(result.Conflicts))
	}

	if result.Trace != nil {
		for _, check := range result.Trace.Checks() {
			ruleID := c.ruleLabel(check.RuleID)
			switch {
			case check.Error != "":
				// counted from Faults below
			case check.Fired:
				c.ruleMetrics.RecordHit(ruleID, check.Tier.Name)
			default:
				c.ruleMetrics.RecordMiss(ruleID, check.Tier.Name)
			}
		}
	}
	for _, fault := range result.Faults {
		c.ruleMetrics.RecordFault(c.ruleLabel(fault.RuleID), fault.Stage)
	}
	if result.Binding != nil {
		c.ruleMetrics.RecordBinding(c.ruleLabel(result.Binding.RuleID), result.Binding.Tier.Name)
	}
}

func evaluationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, engine.ErrAmbiguousPriority):
		return "ambiguous"
	default:
		return "error"
	}
}

// ObserveReload records a catalog load attempt.
func (c *Collector) ObserveReload(status string, catalog *rules.Catalog) {
	if !c.config.Enabled {
		return
	}
	c.catalogMetrics.RecordReload(status, catalog)
}

// ObserveAuditWrite records an audit recorder write.
func (c *Collector) ObserveAuditWrite(status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.auditMetrics.RecordWrite(status, duration)
}

func (c *Collector) ruleLabel(ruleID string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("rule:%s", ruleID)) {
		return otherRule
	}
	return ruleID
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteToTextfile writes the current metrics to path in text exposition
// format, for the node_exporter textfile collector. The file is replaced
// atomically.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// CardinalityLimiter bounds the number of distinct label sets.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality label sets.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

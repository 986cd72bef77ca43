package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
)

func createTestCollector() *Collector {
	return NewCollector(config.MetricsConfig{Enabled: true}, nil)
}

func when(attr string) rules.Condition {
	return func(f *facts.Fact) (rules.Match, error) {
		v, ok := f.Bool(attr)
		return rules.Match{Held: ok && v, Summary: attr}, nil
	}
}

func decide(o rules.Outcome) rules.Action {
	return func(*facts.Fact) (rules.Decision, error) {
		return rules.Decision{Outcome: o, Reason: string(o)}, nil
	}
}

func broken(*facts.Fact) (rules.Decision, error) {
	return rules.Decision{}, errors.New("lookup failed")
}

func createTestCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	c, err := rules.Load([]rules.Rule{
		{ID: "L1-REJECT", Tier: rules.DefaultTier(rules.LevelNational), Priority: 100, Source: "Test Handbook", Condition: when("late"), Action: decide(rules.OutcomeReject)},
		{ID: "L3-ACCEPT", Tier: rules.DefaultTier(rules.LevelUniversity), Priority: 10, Source: "Test Handbook", Condition: when("excused"), Action: decide(rules.OutcomeAccept)},
		{ID: "L3-BROKEN", Tier: rules.DefaultTier(rules.LevelUniversity), Priority: 5, Source: "Test Handbook", Condition: when("excused"), Action: broken},
		{ID: "L2-IDLE", Tier: rules.DefaultTier(rules.LevelAccreditation), Priority: 50, Source: "Test Handbook", Condition: when("never"), Action: decide(rules.OutcomeAccept)},
	}, rules.WithName("test"))
	if err != nil {
		t.Fatalf("rules.Load() error = %v", err)
	}
	return c
}

func evaluate(t *testing.T, c *rules.Catalog, attrs map[string]any) *engine.Result {
	t.Helper()
	res, err := engine.Evaluate(c, facts.MustNew("GRV-1", attrs))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return res
}

func TestCollector_ObserveEvaluation(t *testing.T) {
	c := createTestCollector()
	cat := createTestCatalog(t)

	res := evaluate(t, cat, map[string]any{"late": true, "excused": true})
	c.ObserveEvaluation(res, nil, 3*time.Millisecond)

	l1 := rules.DefaultTier(rules.LevelNational).Name
	l2 := rules.DefaultTier(rules.LevelAccreditation).Name
	l3 := rules.DefaultTier(rules.LevelUniversity).Name

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"evaluations REJECT/success", testutil.ToFloat64(c.evaluationMetrics.evaluationsTotal.WithLabelValues("REJECT", "success")), 1},
		{"conflicts", testutil.ToFloat64(c.evaluationMetrics.conflictsTotal), 1},
		{"review", testutil.ToFloat64(c.evaluationMetrics.reviewTotal), 0},
		{"hit L1", testutil.ToFloat64(c.ruleMetrics.hitsTotal.WithLabelValues("L1-REJECT", l1)), 1},
		{"hit L3", testutil.ToFloat64(c.ruleMetrics.hitsTotal.WithLabelValues("L3-ACCEPT", l3)), 1},
		{"miss L2", testutil.ToFloat64(c.ruleMetrics.missesTotal.WithLabelValues("L2-IDLE", l2)), 1},
		{"fault", testutil.ToFloat64(c.ruleMetrics.faultsTotal.WithLabelValues("L3-BROKEN", engine.StageAction)), 1},
		{"binding", testutil.ToFloat64(c.ruleMetrics.bindingsTotal.WithLabelValues("L1-REJECT", l1)), 1},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.evaluationMetrics.evaluationDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestCollector_ObserveEvaluation_NoBinding(t *testing.T) {
	c := createTestCollector()
	res := evaluate(t, createTestCatalog(t), map[string]any{"late": false})
	c.ObserveEvaluation(res, nil, time.Millisecond)

	if got := testutil.ToFloat64(c.evaluationMetrics.evaluationsTotal.WithLabelValues("NONE", "success")); got != 1 {
		t.Errorf("evaluations NONE/success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evaluationMetrics.reviewTotal); got != 1 {
		t.Errorf("review = %v, want 1", got)
	}
}

func TestEvaluationStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&engine.AmbiguousPriorityError{TierLevel: 1, Priority: 10, RuleIDs: []string{"a", "b"}}, "ambiguous"},
		{engine.ErrNoCatalog, "error"},
	}
	for _, tt := range tests {
		if got := evaluationStatus(tt.err); got != tt.want {
			t.Errorf("evaluationStatus(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCollector_NilResult(t *testing.T) {
	c := createTestCollector()
	c.ObserveEvaluation(nil, engine.ErrNoCatalog, 0)

	if got := testutil.ToFloat64(c.evaluationMetrics.evaluationsTotal.WithLabelValues("NONE", "error")); got != 1 {
		t.Errorf("evaluations NONE/error = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: false}, nil)
	c.ObserveEvaluation(nil, nil, time.Second)
	c.ObserveReload("success", nil)
	c.ObserveAuditWrite("written", time.Millisecond)

	if n := testutil.CollectAndCount(c.evaluationMetrics.evaluationsTotal); n != 0 {
		t.Errorf("evaluation series = %d, want 0", n)
	}
	if n := testutil.CollectAndCount(c.auditMetrics.writesTotal); n != 0 {
		t.Errorf("audit series = %d, want 0", n)
	}
}

func TestCollector_ObserveReload(t *testing.T) {
	c := createTestCollector()
	cat := createTestCatalog(t)

	c.ObserveReload("success", cat)
	c.ObserveReload("failure", nil)

	if got := testutil.ToFloat64(c.catalogMetrics.reloadsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("reloads success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.catalogMetrics.reloadsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("reloads failure = %v, want 1", got)
	}
	l3 := rules.DefaultTier(rules.LevelUniversity).Name
	if got := testutil.ToFloat64(c.catalogMetrics.rules.WithLabelValues(l3)); got != 2 {
		t.Errorf("catalog rules %s = %v, want 2", l3, got)
	}
	if got := testutil.ToFloat64(c.catalogMetrics.lastReload); got != float64(cat.LoadedAt().Unix()) {
		t.Errorf("last reload = %v, want %d", got, cat.LoadedAt().Unix())
	}
}

func TestCollector_ObserveAuditWrite(t *testing.T) {
	c := createTestCollector()
	c.ObserveAuditWrite("written", 2*time.Millisecond)
	c.ObserveAuditWrite("written", time.Millisecond)
	c.ObserveAuditWrite("dropped", 0)

	if got := testutil.ToFloat64(c.auditMetrics.writesTotal.WithLabelValues("written")); got != 2 {
		t.Errorf("written = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.auditMetrics.writesTotal.WithLabelValues("dropped")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("Allow() = false under the limit")
	}
	if cl.Allow("c") {
		t.Error("Allow(c) = true over the limit")
	}
	if !cl.Allow("a") {
		t.Error("Allow(a) = false for a known label set")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_RuleLabelOverflow(t *testing.T) {
	c := createTestCollector()
	c.cardinalityLimiter = NewCardinalityLimiter(1)

	if got := c.ruleLabel("first"); got != "first" {
		t.Errorf("ruleLabel(first) = %q", got)
	}
	if got := c.ruleLabel("second"); got != otherRule {
		t.Errorf("ruleLabel(second) = %q, want %q", got, otherRule)
	}
}

func TestCollector_WriteToTextfile(t *testing.T) {
	c := createTestCollector()
	c.ObserveReload("success", createTestCatalog(t))

	path := filepath.Join(t.TempDir(), "adjudicator.prom")
	if err := c.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v, want nil", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `adjudicator_catalog_reloads_total{status="success"} 1`) {
		t.Errorf("textfile missing reload counter:\n%s", data)
	}
}

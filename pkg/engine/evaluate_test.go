package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

func fixedClock() func() time.Time {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

// numberBelow holds when the attribute is present and < limit.
func numberBelow(attr string, limit float64) rules.Condition {
	return func(f *facts.Fact) (rules.Match, error) {
		v, ok := f.Number(attr)
		if !ok {
			return rules.Match{Summary: fmt.Sprintf("%s < %v [absent]: failed", attr, limit)}, nil
		}
		held := v < limit
		return rules.Match{Held: held, Summary: fmt.Sprintf("%s < %v [%v]: %t", attr, limit, v, held)}, nil
	}
}

// numberAtLeastWith holds when attr >= limit and flag is true.
func numberAtLeastWith(attr string, limit float64, flag string) rules.Condition {
	return func(f *facts.Fact) (rules.Match, error) {
		v, okV := f.Number(attr)
		b, okB := f.Bool(flag)
		held := okV && okB && v >= limit && b
		return rules.Match{Held: held, Summary: fmt.Sprintf("%s >= %v and %s: %t", attr, limit, flag, held)}, nil
	}
}

func outcome(o rules.Outcome, reason string) rules.Action {
	return func(*facts.Fact) (rules.Decision, error) {
		return rules.Decision{Outcome: o, Reason: reason}, nil
	}
}

func createTestRule(id string, level, priority int, cond rules.Condition, act rules.Action) rules.Rule {
	return rules.Rule{
		ID:        id,
		Tier:      rules.DefaultTier(level),
		Priority:  priority,
		Source:    "Test Regulations",
		Condition: cond,
		Action:    act,
	}
}

func createTestCatalog(t *testing.T, defs []rules.Rule, opts ...rules.LoadOption) *rules.Catalog {
	t.Helper()
	c, err := rules.Load(defs, opts...)
	if err != nil {
		t.Fatalf("rules.Load() error = %v", err)
	}
	return c
}

func attendanceCatalog(t *testing.T) *rules.Catalog {
	return createTestCatalog(t, []rules.Rule{
		createTestRule("UGC_Attendance_75Percent_Minimum", rules.LevelNational, 1500,
			numberBelow("attendance", 75), outcome(rules.OutcomeReject, "attendance below 75%")),
		createTestRule("University_Medical_Excuse_Attendance", rules.LevelUniversity, 500,
			numberAtLeastWith("attendance", 70, "certificate"), outcome(rules.OutcomeAccept, "medical excuse")),
	})
}

// A cross-tier conflict is won by tier 1.
func TestEvaluateCrossTierConflict(t *testing.T) {
	catalog := attendanceCatalog(t)
	fact := facts.MustNew("GRV-1", map[string]any{"attendance": 72, "certificate": true})

	result, err := Evaluate(catalog, fact, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if len(result.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(result.Candidates))
	}
	if result.Binding == nil {
		t.Fatal("Binding = nil, want tier-1 decision")
	}
	if result.Binding.RuleID != "UGC_Attendance_75Percent_Minimum" || result.Binding.Outcome != rules.OutcomeReject {
		t.Errorf("Binding = %s/%s, want UGC_Attendance_75Percent_Minimum/REJECT", result.Binding.RuleID, result.Binding.Outcome)
	}

	conflicts := result.Trace.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("len(Conflicts) = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Kind != trace.AuthorityConflict {
		t.Errorf("Kind = %s, want %s", c.Kind, trace.AuthorityConflict)
	}
	if c.Winner != "UGC_Attendance_75Percent_Minimum" {
		t.Errorf("Winner = %s", c.Winner)
	}
	if c.Strategy != trace.StrategyAuthorityPrecedence {
		t.Errorf("Strategy = %q", c.Strategy)
	}
	wantExplanation := "L1_National supersedes L3_University based on authority precedence."
	if c.Explanation != wantExplanation {
		t.Errorf("Explanation = %q, want %q", c.Explanation, wantExplanation)
	}
	if len(c.Competitors) != 2 || c.Competitors[0].Tier.Level != 1 || c.Competitors[1].Tier.Level != 3 {
		t.Errorf("Competitors = %+v, want [L1 L3]", c.Competitors)
	}
	if result.NeedsReview() {
		t.Error("NeedsReview() = true, want false")
	}
}

// A single match binds without a conflict.
func TestEvaluateSingleMatch(t *testing.T) {
	catalog := attendanceCatalog(t)
	fact := facts.MustNew("GRV-2", map[string]any{"attendance": 60})

	result, err := Evaluate(catalog, fact)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if result.Binding == nil || result.Binding.RuleID != "UGC_Attendance_75Percent_Minimum" {
		t.Fatalf("Binding = %+v, want UGC_Attendance_75Percent_Minimum", result.Binding)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("len(Candidates) = %d, want 1", len(result.Candidates))
	}
	if len(result.Trace.Conflicts()) != 0 {
		t.Errorf("len(Conflicts) = %d, want 0", len(result.Trace.Conflicts()))
	}
	if result.Binding.Source != "Test Regulations" || result.Binding.Priority != 1500 {
		t.Errorf("Binding provenance = %+v, want stamped from rule", result.Binding)
	}
}

// No rule matches.
func TestEvaluateNoMatch(t *testing.T) {
	catalog := attendanceCatalog(t)
	fact := facts.MustNew("GRV-3", map[string]any{"attendance": 90})

	result, err := Evaluate(catalog, fact)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if result.Binding != nil {
		t.Errorf("Binding = %+v, want nil", result.Binding)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("len(Candidates) = %d, want 0", len(result.Candidates))
	}
	if len(result.Trace.Conflicts()) != 0 {
		t.Errorf("len(Conflicts) = %d, want 0", len(result.Trace.Conflicts()))
	}
	if result.Trace.Len() != 2 {
		t.Errorf("Trace.Len() = %d, want 2", result.Trace.Len())
	}
	if !result.NeedsReview() {
		t.Error("NeedsReview() = false, want true")
	}
	if result.Outcome() != "NONE" {
		t.Errorf("Outcome() = %q, want NONE", result.Outcome())
	}
}

// Two matches share tier and priority.
func TestEvaluateAmbiguousPriority(t *testing.T) {
	catalog := createTestCatalog(t, []rules.Rule{
		createTestRule("NAAC_A", rules.LevelAccreditation, 800, numberBelow("attendance", 75), outcome(rules.OutcomeReject, "a")),
		createTestRule("NAAC_B", rules.LevelAccreditation, 800, numberBelow("attendance", 80), outcome(rules.OutcomePartialAccept, "b")),
	}, rules.AllowSharedPriority())
	fact := facts.MustNew("GRV-4", map[string]any{"attendance": 70})

	result, err := Evaluate(catalog, fact)
	if !errors.Is(err, ErrAmbiguousPriority) {
		t.Fatalf("Evaluate() error = %v, want ErrAmbiguousPriority", err)
	}
	var ambErr *AmbiguousPriorityError
	if !errors.As(err, &ambErr) {
		t.Fatalf("error type = %T, want *AmbiguousPriorityError", err)
	}
	if ambErr.TierLevel != 2 || ambErr.Priority != 800 || len(ambErr.RuleIDs) != 2 {
		t.Errorf("AmbiguousPriorityError = %+v", ambErr)
	}
	if result == nil {
		t.Fatal("Result = nil, want result with completed trace")
	}
	if result.Binding != nil {
		t.Errorf("Binding = %+v, want nil", result.Binding)
	}
	if result.Trace == nil || result.Trace.Len() != 2 {
		t.Error("Trace not completed on ambiguity")
	}
	if !IsAmbiguous(err) {
		t.Error("IsAmbiguous() = false, want true")
	}
}

// A faulty rule does not block a healthy one.
func TestEvaluateFaultIsolation(t *testing.T) {
	tests := []struct {
		name  string
		fault rules.Rule
		stage string
	}{
		{
			name: "condition error",
			fault: createTestRule("Faulty", rules.LevelNational, 2000,
				func(*facts.Fact) (rules.Match, error) { return rules.Match{}, errors.New("type mismatch") },
				outcome(rules.OutcomeReject, "never")),
			stage: StageCondition,
		},
		{
			name: "condition panic",
			fault: createTestRule("Faulty", rules.LevelNational, 2000,
				func(f *facts.Fact) (rules.Match, error) {
					var m map[string]int
					m["boom"] = 1
					return rules.Match{}, nil
				},
				outcome(rules.OutcomeReject, "never")),
			stage: StageCondition,
		},
		{
			name: "action panic",
			fault: createTestRule("Faulty", rules.LevelNational, 2000,
				numberBelow("attendance", 100),
				func(*facts.Fact) (rules.Decision, error) { panic("action exploded") }),
			stage: StageAction,
		},
		{
			name: "invalid outcome",
			fault: createTestRule("Faulty", rules.LevelNational, 2000,
				numberBelow("attendance", 100), outcome(rules.Outcome("MAYBE"), "bad")),
			stage: StageAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := createTestCatalog(t, []rules.Rule{
				tt.fault,
				createTestRule("Healthy", rules.LevelUniversity, 100, numberBelow("attendance", 75), outcome(rules.OutcomeReject, "ok")),
			})
			fact := facts.MustNew("GRV-5", map[string]any{"attendance": 70})

			result, err := Evaluate(catalog, fact)
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if result.Binding == nil || result.Binding.RuleID != "Healthy" {
				t.Fatalf("Binding = %+v, want Healthy", result.Binding)
			}
			if len(result.Faults) != 1 {
				t.Fatalf("len(Faults) = %d, want 1", len(result.Faults))
			}
			if result.Faults[0].Stage != tt.stage {
				t.Errorf("Faults[0].Stage = %s, want %s", result.Faults[0].Stage, tt.stage)
			}
			if !errors.Is(result.Faults[0], ErrRuleEvaluation) {
				t.Error("fault does not match ErrRuleEvaluation")
			}

			checks := result.Trace.Checks()
			if len(checks) != 2 {
				t.Fatalf("len(Checks) = %d, want 2", len(checks))
			}
			if checks[0].Fired {
				t.Error("faulty check Fired = true, want false")
			}
			if !strings.Contains(checks[0].Error, "Faulty") {
				t.Errorf("faulty check Error = %q, want error note", checks[0].Error)
			}
			if !checks[1].Fired {
				t.Error("healthy check Fired = false, want true")
			}
			if result.Trace.ErrorCount() != 1 {
				t.Errorf("ErrorCount() = %d, want 1", result.Trace.ErrorCount())
			}
		})
	}
}

func TestEvaluateTraceOrderAndSummaries(t *testing.T) {
	catalog := attendanceCatalog(t)
	fact := facts.MustNew("GRV-6", map[string]any{"attendance": 72, "certificate": true})

	result, err := Evaluate(catalog, fact, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	checks := result.Trace.Checks()
	if checks[0].RuleID != "UGC_Attendance_75Percent_Minimum" || checks[1].RuleID != "University_Medical_Excuse_Attendance" {
		t.Errorf("check order = [%s %s], want catalog order", checks[0].RuleID, checks[1].RuleID)
	}
	if !strings.Contains(checks[0].Summary, "[72]") {
		t.Errorf("Summary = %q, want observed value", checks[0].Summary)
	}
	if !checks[0].Timestamp.Before(checks[1].Timestamp) {
		t.Error("check timestamps not increasing")
	}
	if result.CatalogVersion != catalog.Version() {
		t.Errorf("CatalogVersion = %s, want %s", result.CatalogVersion, catalog.Version())
	}
}

func TestEvaluateNilInputs(t *testing.T) {
	if _, err := Evaluate(nil, facts.MustNew("x", nil)); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("Evaluate(nil catalog) error = %v, want ErrNoCatalog", err)
	}
	if _, err := Evaluate(attendanceCatalog(t), nil); err == nil {
		t.Error("Evaluate(nil fact) error = nil, want error")
	}
}

package rules

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/adjudicator/pkg/facts"
)

func always(held bool) Condition {
	return func(*facts.Fact) (Match, error) {
		return Match{Held: held, Summary: "constant"}, nil
	}
}

func decide(o Outcome) Action {
	return func(*facts.Fact) (Decision, error) {
		return Decision{Outcome: o, Reason: "test"}, nil
	}
}

func createTestRule(id string, level, priority int) Rule {
	return Rule{
		ID:        id,
		Tier:      DefaultTier(level),
		Priority:  priority,
		Source:    "Test Regulations, Section 1",
		Condition: always(true),
		Action:    decide(OutcomeAccept),
	}
}

func TestLoad(t *testing.T) {
	defs := []Rule{
		createTestRule("b", LevelUniversity, 500),
		createTestRule("a", LevelNational, 1500),
	}

	c, err := Load(defs, WithName("attendance"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if c.Name() != "attendance" {
		t.Errorf("Name() = %q, want attendance", c.Name())
	}
	if len(c.Version()) != 16 {
		t.Errorf("Version() = %q, want 16 hex chars", c.Version())
	}

	got := c.Rules()
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("Rules() order = [%s %s], want load order [b a]", got[0].ID, got[1].ID)
	}
	got[0].ID = "mutated"
	if r, _ := c.Rule("b"); r.ID != "b" {
		t.Error("Rules() exposed internal slice")
	}

	tiers := c.Tiers()
	if len(tiers) != 2 || tiers[0].Level != 1 || tiers[1].Level != 3 {
		t.Errorf("Tiers() = %v, want [L1 L3]", tiers)
	}
}

func TestLoadVersionIsStable(t *testing.T) {
	defs := []Rule{createTestRule("a", 1, 10), createTestRule("b", 2, 10)}
	c1, err := Load(defs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c2, err := Load(defs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c1.Version() != c2.Version() {
		t.Errorf("Version() differs for identical catalogs: %s vs %s", c1.Version(), c2.Version())
	}

	defs[1].Priority = 11
	c3, err := Load(defs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c3.Version() == c1.Version() {
		t.Error("Version() unchanged after priority change")
	}

	defs[1].ActionText = "outcome=REJECT"
	c5, err := Load(defs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c5.Version() == c3.Version() {
		t.Error("Version() unchanged after decision change")
	}

	c4, err := Load(defs, WithVersion("2024.1"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c4.Version() != "2024.1" {
		t.Errorf("Version() = %q, want 2024.1", c4.Version())
	}
}

func TestLoadErrors(t *testing.T) {
	missingSource := createTestRule("x", 1, 1)
	missingSource.Source = ""
	nilCondition := createTestRule("y", 1, 2)
	nilCondition.Condition = nil

	tests := []struct {
		name    string
		defs    []Rule
		opts    []LoadOption
		wantMsg string
	}{
		{
			name:    "missing id",
			defs:    []Rule{createTestRule("", 1, 1)},
			wantMsg: "missing id",
		},
		{
			name:    "duplicate id",
			defs:    []Rule{createTestRule("a", 1, 1), createTestRule("a", 2, 1)},
			wantMsg: "duplicate id",
		},
		{
			name:    "invalid tier",
			defs:    []Rule{createTestRule("a", 0, 1)},
			wantMsg: "tier level",
		},
		{
			name:    "missing source",
			defs:    []Rule{missingSource},
			wantMsg: "missing source",
		},
		{
			name:    "missing condition",
			defs:    []Rule{nilCondition},
			wantMsg: "missing condition",
		},
		{
			name:    "shared priority",
			defs:    []Rule{createTestRule("a", 2, 100), createTestRule("b", 2, 100)},
			wantMsg: "already used by a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.defs, tt.opts...)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !errors.Is(err, ErrCatalogLoad) {
				t.Errorf("Load() error = %v, want ErrCatalogLoad", err)
			}
			var loadErr *CatalogLoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Load() error type = %T, want *CatalogLoadError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoadAllowSharedPriority(t *testing.T) {
	defs := []Rule{createTestRule("a", 2, 100), createTestRule("b", 2, 100)}
	if _, err := Load(defs, AllowSharedPriority()); err != nil {
		t.Fatalf("Load(AllowSharedPriority) error = %v, want nil", err)
	}
}

func TestOutcome(t *testing.T) {
	for _, o := range Outcomes() {
		if !o.Valid() {
			t.Errorf("%s.Valid() = false", o)
		}
	}
	if got, err := ParseOutcome(" partial_accept "); err != nil || got != OutcomePartialAccept {
		t.Errorf("ParseOutcome() = %q, %v", got, err)
	}
	if _, err := ParseOutcome("MAYBE"); err == nil {
		t.Error("ParseOutcome(MAYBE) error = nil, want error")
	}
}

func TestTierOutranks(t *testing.T) {
	if !TierNational.Outranks(TierUniversity) {
		t.Error("L1 should outrank L3")
	}
	if TierUniversity.Outranks(TierAccreditation) {
		t.Error("L3 should not outrank L2")
	}
	if TierNational.Outranks(TierNational) {
		t.Error("a tier should not outrank itself")
	}
	if got := DefaultTier(7).String(); got != "L7" {
		t.Errorf("DefaultTier(7).String() = %q, want L7", got)
	}
}

func TestStamp(t *testing.T) {
	r := createTestRule("UGC_Attendance", 1, 1500)
	r.Authority = "UGC"
	d := r.Stamp(Decision{RuleID: "spoofed", Outcome: OutcomeReject})
	if d.RuleID != "UGC_Attendance" || d.Priority != 1500 || d.Tier != TierNational || d.Authority != "UGC" {
		t.Errorf("Stamp() = %+v, want provenance from rule", d)
	}
}

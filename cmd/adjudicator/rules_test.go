package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRulesList(t *testing.T) {
	out, err := execute(t, "rules", "list", "--catalog", "testdata/catalog", "--format", "json")
	if err != nil {
		t.Fatalf("rules list error = %v, want nil", err)
	}

	var views []ruleView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}
	if views[0].ID != "UGC_Attendance_Minimum" || views[0].TierName != "L1_National" {
		t.Errorf("views[0] = %+v, want national rule first", views[0])
	}
	if views[1].Condition == "" {
		t.Errorf("views[1].Condition is empty")
	}
}

func TestRulesListTierFilter(t *testing.T) {
	out, err := execute(t, "rules", "list", "--catalog", "testdata/catalog", "--tier", "3")
	if err != nil {
		t.Fatalf("rules list error = %v, want nil", err)
	}
	if strings.Contains(out, "UGC_Attendance_Minimum") {
		t.Errorf("tier 1 rule listed with --tier 3:\n%s", out)
	}
	if !strings.Contains(out, "University_Medical_Excuse") {
		t.Errorf("tier 3 rule missing:\n%s", out)
	}
}

func TestRulesShow(t *testing.T) {
	out, err := execute(t, "rules", "show", "--catalog", "testdata/catalog", "University_Medical_Excuse")
	if err != nil {
		t.Fatalf("rules show error = %v, want nil", err)
	}
	for _, want := range []string{"L3_University (level 3)", "Priority:    500", "University Ordinance 12.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRulesShowUnknown(t *testing.T) {
	if _, err := execute(t, "rules", "show", "--catalog", "testdata/catalog", "No_Such_Rule"); err == nil {
		t.Error("rules show of unknown rule should return error")
	}
}

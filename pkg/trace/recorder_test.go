package trace

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"mercator-hq/adjudicator/pkg/rules"
)

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func createTestRecorder() *Recorder {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return New(WithClock(stepClock(start, time.Millisecond)))
}

func TestRecorderComplete(t *testing.T) {
	r := createTestRecorder()

	checks := []Check{
		{RuleID: "UGC_Attendance_75Percent_Minimum", Tier: rules.TierNational, Priority: 1500, Summary: "attendance_percentage < 75 [72]: held", Fired: true, Outcome: rules.OutcomeReject},
		{RuleID: "University_Medical_Excuse", Tier: rules.TierUniversity, Priority: 500, Summary: "has_medical_certificate == true [true]: held", Fired: true, Outcome: rules.OutcomeAccept},
		{RuleID: "Broken_Rule", Tier: rules.TierAccreditation, Priority: 10, Error: "boom"},
	}
	for _, c := range checks {
		if err := r.RecordCheck(c); err != nil {
			t.Fatalf("RecordCheck() error = %v, want nil", err)
		}
	}
	conflict := Conflict{
		Kind:        AuthorityConflict,
		Competitors: []rules.Decision{{RuleID: "UGC_Attendance_75Percent_Minimum", Tier: rules.TierNational}, {RuleID: "University_Medical_Excuse", Tier: rules.TierUniversity}},
		Strategy:    StrategyAuthorityPrecedence,
		Winner:      "UGC_Attendance_75Percent_Minimum",
	}
	if err := r.RecordConflict(conflict); err != nil {
		t.Fatalf("RecordConflict() error = %v, want nil", err)
	}

	tr, err := r.Complete()
	if err != nil {
		t.Fatalf("Complete() error = %v, want nil", err)
	}

	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
	if tr.FiredCount() != 2 {
		t.Errorf("FiredCount() = %d, want 2", tr.FiredCount())
	}
	if tr.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", tr.ErrorCount())
	}
	for i, c := range tr.Checks() {
		if c.RuleID != checks[i].RuleID {
			t.Errorf("Checks()[%d].RuleID = %s, want %s", i, c.RuleID, checks[i].RuleID)
		}
		if c.Timestamp.IsZero() {
			t.Errorf("Checks()[%d].Timestamp is zero", i)
		}
	}
	if len(tr.Conflicts()) != 1 {
		t.Fatalf("len(Conflicts()) = %d, want 1", len(tr.Conflicts()))
	}
	if tr.Duration() <= 0 {
		t.Errorf("Duration() = %v, want > 0", tr.Duration())
	}
}

func TestRecorderSealed(t *testing.T) {
	r := createTestRecorder()
	if _, err := r.Complete(); err != nil {
		t.Fatalf("Complete() error = %v, want nil", err)
	}

	if err := r.RecordCheck(Check{RuleID: "late"}); !errors.Is(err, ErrTraceSealed) {
		t.Errorf("RecordCheck() after Complete error = %v, want ErrTraceSealed", err)
	}
	if err := r.RecordConflict(Conflict{}); !errors.Is(err, ErrTraceSealed) {
		t.Errorf("RecordConflict() after Complete error = %v, want ErrTraceSealed", err)
	}
	if _, err := r.Complete(); !errors.Is(err, ErrTraceSealed) {
		t.Errorf("second Complete() error = %v, want ErrTraceSealed", err)
	}
}

func TestTraceIsolation(t *testing.T) {
	r := createTestRecorder()
	_ = r.RecordConflict(Conflict{Kind: AuthorityConflict, Competitors: []rules.Decision{{RuleID: "a"}, {RuleID: "b"}}})
	tr, _ := r.Complete()

	cs := tr.Conflicts()
	cs[0].Competitors[0].RuleID = "mutated"
	if tr.Conflicts()[0].Competitors[0].RuleID != "a" {
		t.Error("Conflicts() exposed internal competitors slice")
	}
}

func TestAuditRecordRoundTrip(t *testing.T) {
	r := createTestRecorder()
	_ = r.RecordCheck(Check{RuleID: "a", Tier: rules.TierNational, Priority: 1500, Summary: "x < 75 [72]: held", Fired: true, Outcome: rules.OutcomeReject, Reason: "below minimum", Source: "UGC 4.2"})
	_ = r.RecordCheck(Check{RuleID: "b", Tier: rules.TierUniversity, Priority: 500, Summary: "y == true [absent]: failed"})
	_ = r.RecordConflict(Conflict{
		Kind:        AuthorityConflict,
		Competitors: []rules.Decision{{RuleID: "a", Tier: rules.TierNational, Priority: 1500, Outcome: rules.OutcomeReject}, {RuleID: "c", Tier: rules.TierUniversity, Priority: 400, Outcome: rules.OutcomeAccept}},
		Strategy:    StrategyAuthorityPrecedence,
		Winner:      "a",
		Explanation: "L1_National supersedes L3_University based on authority precedence.",
	})
	original, err := r.Complete()
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rec := original.ToAuditRecord()
	if got := rec.Conflicts[0].ConflictingRules; !reflect.DeepEqual(got, []string{"a (L1_National)", "c (L3_University)"}) {
		t.Errorf("ConflictingRules = %v", got)
	}
	if rec.ProcessingTimeMs <= 0 {
		t.Errorf("ProcessingTimeMs = %v, want > 0", rec.ProcessingTimeMs)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded AuditRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	replayed := FromAuditRecord(decoded)
	if replayed.Len() != original.Len() {
		t.Fatalf("replayed Len() = %d, want %d", replayed.Len(), original.Len())
	}
	for i, c := range replayed.Checks() {
		want := original.Checks()[i]
		if c.RuleID != want.RuleID || c.Tier != want.Tier || c.Fired != want.Fired || c.Summary != want.Summary || !c.Timestamp.Equal(want.Timestamp) {
			t.Errorf("replayed check %d = %+v, want %+v", i, c, want)
		}
	}
	if !reflect.DeepEqual(replayed.Conflicts(), original.Conflicts()) {
		t.Errorf("replayed conflicts = %+v, want %+v", replayed.Conflicts(), original.Conflicts())
	}
	if replayed.Duration() != original.Duration() {
		t.Errorf("replayed Duration() = %v, want %v", replayed.Duration(), original.Duration())
	}
}

package trace

import (
	"time"

	"mercator-hq/adjudicator/pkg/rules"
)

// AuditRecord is the serializable form of a Trace.
type AuditRecord struct {
	RulesEvaluated   []CheckRecord    `json:"rules_evaluated"`
	Conflicts        []ConflictRecord `json:"conflicts"`
	StartedAt        time.Time        `json:"started_at"`
	EndedAt          time.Time        `json:"ended_at"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
}

// CheckRecord is the serializable form of a Check.
type CheckRecord struct {
	RuleID    string        `json:"rule_id"`
	TierLevel int           `json:"hierarchy_level"`
	TierName  string        `json:"hierarchy_name"`
	Priority  int           `json:"salience"`
	Summary   string        `json:"conditions_checked"`
	Fired     bool          `json:"fired"`
	Outcome   rules.Outcome `json:"outcome,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Source    string        `json:"source,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ConflictRecord is the serializable form of a Conflict.
type ConflictRecord struct {
	Type               ConflictKind     `json:"type"`
	Competitors        []rules.Decision `json:"competitors"`
	ConflictingRules   []string         `json:"conflicting_rules"`
	ResolutionStrategy string           `json:"resolution_strategy"`
	Winner             string           `json:"winner"`
	Explanation        string           `json:"explanation"`
}

// ToAuditRecord converts the trace to its serializable form.
func (t *Trace) ToAuditRecord() AuditRecord {
	rec := AuditRecord{
		RulesEvaluated:   make([]CheckRecord, len(t.checks)),
		Conflicts:        make([]ConflictRecord, len(t.conflicts)),
		StartedAt:        t.startedAt,
		EndedAt:          t.endedAt,
		ProcessingTimeMs: float64(t.Duration().Microseconds()) / 1000,
	}
	for i, c := range t.checks {
		rec.RulesEvaluated[i] = CheckRecord{
			RuleID:    c.RuleID,
			TierLevel: c.Tier.Level,
			TierName:  c.Tier.Name,
			Priority:  c.Priority,
			Summary:   c.Summary,
			Fired:     c.Fired,
			Outcome:   c.Outcome,
			Reason:    c.Reason,
			Source:    c.Source,
			Error:     c.Error,
			Timestamp: c.Timestamp,
		}
	}
	for i, c := range t.conflicts {
		names := make([]string, len(c.Competitors))
		for j, d := range c.Competitors {
			names[j] = d.RuleID + " (" + d.Tier.String() + ")"
		}
		rec.Conflicts[i] = ConflictRecord{
			Type:               c.Kind,
			Competitors:        append([]rules.Decision(nil), c.Competitors...),
			ConflictingRules:   names,
			ResolutionStrategy: c.Strategy,
			Winner:             c.Winner,
			Explanation:        c.Explanation,
		}
	}
	return rec
}

// FromAuditRecord rebuilds a sealed Trace from its serializable form.
func FromAuditRecord(rec AuditRecord) *Trace {
	t := &Trace{
		checks:    make([]Check, len(rec.RulesEvaluated)),
		conflicts: make([]Conflict, len(rec.Conflicts)),
		startedAt: rec.StartedAt,
		endedAt:   rec.EndedAt,
	}
	for i, c := range rec.RulesEvaluated {
		t.checks[i] = Check{
			RuleID:    c.RuleID,
			Tier:      rules.Tier{Level: c.TierLevel, Name: c.TierName},
			Priority:  c.Priority,
			Summary:   c.Summary,
			Fired:     c.Fired,
			Outcome:   c.Outcome,
			Reason:    c.Reason,
			Source:    c.Source,
			Error:     c.Error,
			Timestamp: c.Timestamp,
		}
	}
	for i, c := range rec.Conflicts {
		t.conflicts[i] = Conflict{
			Kind:        c.Type,
			Competitors: append([]rules.Decision(nil), c.Competitors...),
			Strategy:    c.ResolutionStrategy,
			Winner:      c.Winner,
			Explanation: c.Explanation,
		}
	}
	return t
}

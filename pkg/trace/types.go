package trace

import (
	"time"

	"mercator-hq/adjudicator/pkg/rules"
)

// ConflictKind classifies a recorded conflict.
type ConflictKind string

const (
	// AuthorityConflict means candidates from more than one tier fired.
	AuthorityConflict ConflictKind = "AUTHORITY_CONFLICT"
)

// StrategyAuthorityPrecedence is the resolution strategy for authority conflicts.
const StrategyAuthorityPrecedence = "Authority Precedence"

// Check is the trace entry for one rule.
type Check struct {
	RuleID   string
	Tier     rules.Tier
	Priority int

	// Summary describes what the condition tested and with which values.
	Summary string

	// Fired is true when the condition held and the action produced a valid decision.
	Fired bool

	// Outcome and Reason are set only when Fired.
	Outcome rules.Outcome
	Reason  string

	Source string

	// Error holds the evaluation failure note for a faulty rule.
	Error string

	Timestamp time.Time
}

// Conflict is the trace entry for a cross-tier conflict.
type Conflict struct {
	Kind        ConflictKind
	Competitors []rules.Decision
	Strategy    string
	Winner      string
	Explanation string
}

// Trace is a sealed evaluation trace.
type Trace struct {
	checks    []Check
	conflicts []Conflict
	startedAt time.Time
	endedAt   time.Time
}

// Checks returns the per-rule entries in evaluation order.
func (t *Trace) Checks() []Check {
	return append([]Check(nil), t.checks...)
}

// Conflicts returns the recorded conflicts.
func (t *Trace) Conflicts() []Conflict {
	out := make([]Conflict, len(t.conflicts))
	for i, c := range t.conflicts {
		c.Competitors = append([]rules.Decision(nil), c.Competitors...)
		out[i] = c
	}
	return out
}

// StartedAt returns when recording began.
func (t *Trace) StartedAt() time.Time { return t.startedAt }

// EndedAt returns when the trace was sealed.
func (t *Trace) EndedAt() time.Time { return t.endedAt }

// Duration returns the evaluation's elapsed time.
func (t *Trace) Duration() time.Duration { return t.endedAt.Sub(t.startedAt) }

// Len returns the number of checks.
func (t *Trace) Len() int { return len(t.checks) }

// FiredCount returns how many rules fired.
func (t *Trace) FiredCount() int {
	n := 0
	for _, c := range t.checks {
		if c.Fired {
			n++
		}
	}
	return n
}

// ErrorCount returns how many rules failed to evaluate.
func (t *Trace) ErrorCount() int {
	n := 0
	for _, c := range t.checks {
		if c.Error != "" {
			n++
		}
	}
	return n
}

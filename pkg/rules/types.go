package rules

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/facts"
)

// Default tier levels.
const (
	LevelNational      = 1
	LevelAccreditation = 2
	LevelUniversity    = 3
)

// Tier is an authority level. Lower Level means higher authority.
type Tier struct {
	Level int    `json:"level" yaml:"level"`
	Name  string `json:"name" yaml:"name"`
}

// Default tiers used when a catalog does not name its own.
var (
	TierNational      = Tier{Level: LevelNational, Name: "L1_National"}
	TierAccreditation = Tier{Level: LevelAccreditation, Name: "L2_Accreditation"}
	TierUniversity    = Tier{Level: LevelUniversity, Name: "L3_University"}
)

// DefaultTier returns the conventional tier for a level, or a generic
// "L<n>" tier for levels outside the default hierarchy.
func DefaultTier(level int) Tier {
	switch level {
	case LevelNational:
		return TierNational
	case LevelAccreditation:
		return TierAccreditation
	case LevelUniversity:
		return TierUniversity
	default:
		return Tier{Level: level, Name: fmt.Sprintf("L%d", level)}
	}
}

// Outranks reports whether t has strictly higher authority than o.
func (t Tier) Outranks(o Tier) bool {
	return t.Level < o.Level
}

// String returns the tier name, falling back to the level.
func (t Tier) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("L%d", t.Level)
}

// Outcome is the closed set of decisions a rule may produce.
type Outcome string

const (
	OutcomeAccept               Outcome = "ACCEPT"
	OutcomeReject               Outcome = "REJECT"
	OutcomePartialAccept        Outcome = "PARTIAL_ACCEPT"
	OutcomePendingClarification Outcome = "PENDING_CLARIFICATION"
)

// Outcomes lists every valid outcome.
func Outcomes() []Outcome {
	return []Outcome{OutcomeAccept, OutcomeReject, OutcomePartialAccept, OutcomePendingClarification}
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccept, OutcomeReject, OutcomePartialAccept, OutcomePendingClarification:
		return true
	}
	return false
}

// ParseOutcome converts a string (case-insensitive) to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Decision is the candidate decision produced by a fired rule. RuleID, Tier,
// Priority, Source and Authority are provenance and are filled from the rule
// that produced it.
type Decision struct {
	RuleID         string  `json:"rule_id"`
	Tier           Tier    `json:"tier"`
	Priority       int     `json:"priority"`
	Outcome        Outcome `json:"outcome"`
	Reason         string  `json:"reason"`
	Source         string  `json:"source"`
	Authority      string  `json:"authority,omitempty"`
	ActionRequired string  `json:"action_required,omitempty"`
	HumanReview    bool    `json:"human_review"`
}

// Match is the result of testing a rule condition.
type Match struct {
	// Held is true when the condition is satisfied.
	Held bool
	// Summary is a human-readable account of what was tested,
	// e.g. "attendance_percentage < 75 [72]: held".
	Summary string
}

// Condition is a pure predicate over a fact.
type Condition func(f *facts.Fact) (Match, error)

// Action produces the rule's candidate decision for a fact whose condition held.
type Action func(f *facts.Fact) (Decision, error)

// Rule is a single regulatory rule.
type Rule struct {
	// ID uniquely identifies the rule within a catalog.
	ID string

	// Tier is the authority tier the rule belongs to.
	Tier Tier

	// Priority orders rules within a tier; larger wins.
	Priority int

	// Description is free text shown in listings.
	Description string

	// Source cites the regulatory clause, e.g. "UGC Regulations 2018, Section 4.2".
	Source string

	// Authority names the issuing body.
	Authority string

	// ConditionText is the human-readable form of Condition.
	ConditionText string

	// ActionText is a canonical rendering of what the rule decides. Two
	// rules that decide differently must have different ActionText.
	ActionText string

	Condition Condition
	Action    Action
}

// Stamp copies the rule's provenance onto d.
func (r *Rule) Stamp(d Decision) Decision {
	d.RuleID = r.ID
	d.Tier = r.Tier
	d.Priority = r.Priority
	d.Source = r.Source
	if d.Authority == "" {
		d.Authority = r.Authority
	}
	return d
}

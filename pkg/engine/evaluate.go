package engine

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

// Result is the outcome of one evaluation.
type Result struct {
	// CaseID is the fact's identifier.
	CaseID string

	// Binding is the authoritative decision, or nil when no rule fired or
	// the candidates were ambiguous.
	Binding *rules.Decision

	// Candidates holds the decisions of every fired rule, in catalog order.
	Candidates []rules.Decision

	// Conflicts found during resolution.
	Conflicts []trace.Conflict

	// Faults lists rules that failed to evaluate.
	Faults []*RuleEvaluationError

	// Trace is the sealed evaluation trace.
	Trace *trace.Trace

	CatalogName    string
	CatalogVersion string
}

// Matched reports whether a binding decision was produced.
func (r *Result) Matched() bool {
	return r.Binding != nil
}

// NeedsReview reports whether the case must be routed to a human: no binding
// decision, or a binding decision that asks for review.
func (r *Result) NeedsReview() bool {
	return r.Binding == nil || r.Binding.HumanReview
}

// Outcome returns the binding outcome, or "NONE" without one.
func (r *Result) Outcome() string {
	if r.Binding == nil {
		return "NONE"
	}
	return string(r.Binding.Outcome)
}

// Option configures Evaluate.
type Option func(*evalOptions)

type evalOptions struct {
	clock func() time.Time
}

// WithClock sets the time source used for trace timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *evalOptions) { o.clock = now }
}

// Evaluate runs every rule in catalog against fact, exactly once and in
// catalog order, then resolves the candidates.
//
// A rule whose condition or action fails is recorded in the trace and left
// out of the candidates. The only error returned is an
// *AmbiguousPriorityError, in which case the Result is still returned with a
// completed trace and no binding.
func Evaluate(catalog *rules.Catalog, fact *facts.Fact, opts ...Option) (*Result, error) {
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	if fact == nil {
		return nil, fmt.Errorf("fact cannot be nil")
	}

	o := evalOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	rec := trace.New(trace.WithClock(o.clock))
	result := &Result{
		CaseID:         fact.ID(),
		CatalogName:    catalog.Name(),
		CatalogVersion: catalog.Version(),
	}

	for _, rule := range catalog.Rules() {
		check, decision, fault := runRule(&rule, fact)
		check.Timestamp = o.clock()
		if err := rec.RecordCheck(check); err != nil {
			return nil, err
		}
		if fault != nil {
			result.Faults = append(result.Faults, fault)
			continue
		}
		if decision != nil {
			result.Candidates = append(result.Candidates, *decision)
		}
	}

	binding, conflicts, resolveErr := Resolve(result.Candidates)
	for _, c := range conflicts {
		if err := rec.RecordConflict(c); err != nil {
			return nil, err
		}
	}
	result.Binding = binding
	result.Conflicts = conflicts

	t, err := rec.Complete()
	if err != nil {
		return nil, err
	}
	result.Trace = t

	return result, resolveErr
}

// runRule evaluates one rule, converting errors and panics into a fault.
func runRule(rule *rules.Rule, fact *facts.Fact) (check trace.Check, decision *rules.Decision, fault *RuleEvaluationError) {
	check = trace.Check{
		RuleID:   rule.ID,
		Tier:     rule.Tier,
		Priority: rule.Priority,
		Source:   rule.Source,
	}

	stage := StageCondition
	defer func() {
		if p := recover(); p != nil {
			fault = &RuleEvaluationError{RuleID: rule.ID, Stage: stage, Cause: fmt.Errorf("panic: %v", p)}
			check.Fired = false
			check.Outcome = ""
			check.Reason = ""
			check.Error = fault.Error()
			decision = nil
		}
	}()

	match, err := rule.Condition(fact)
	check.Summary = match.Summary
	if err != nil {
		fault = &RuleEvaluationError{RuleID: rule.ID, Stage: stage, Cause: err}
		check.Error = fault.Error()
		return check, nil, fault
	}
	if !match.Held {
		return check, nil, nil
	}

	stage = StageAction
	d, err := rule.Action(fact)
	if err == nil && !d.Outcome.Valid() {
		err = fmt.Errorf("invalid outcome %q", d.Outcome)
	}
	if err != nil {
		fault = &RuleEvaluationError{RuleID: rule.ID, Stage: stage, Cause: err}
		check.Error = fault.Error()
		return check, nil, fault
	}

	d = rule.Stamp(d)
	check.Fired = true
	check.Outcome = d.Outcome
	check.Reason = d.Reason
	return check, &d, nil
}

// IsAmbiguous reports whether err is an ambiguity error.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousPriority)
}

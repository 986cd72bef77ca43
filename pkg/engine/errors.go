package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrRuleEvaluation is matched by RuleEvaluationError.
	ErrRuleEvaluation = errors.New("rule evaluation failed")

	// ErrAmbiguousPriority is matched by AmbiguousPriorityError.
	ErrAmbiguousPriority = errors.New("ambiguous rule priority")

	// ErrNoCatalog indicates the engine has no catalog to evaluate against.
	ErrNoCatalog = errors.New("no catalog loaded")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// Evaluation stages reported by RuleEvaluationError.
const (
	StageCondition = "condition"
	StageAction    = "action"
)

// RuleEvaluationError records a rule whose condition or action failed. It is
// recovered within the session and never aborts it.
type RuleEvaluationError struct {
	RuleID string
	Stage  string
	Cause  error
}

// Error returns the error message.
func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %s failed: %v", e.RuleID, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RuleEvaluationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrRuleEvaluation.
func (e *RuleEvaluationError) Is(target error) bool {
	return target == ErrRuleEvaluation
}

// AmbiguousPriorityError is returned when two candidates share both tier and
// priority, so no binding decision can be chosen.
type AmbiguousPriorityError struct {
	TierLevel int
	Priority  int
	RuleIDs   []string
}

// Error returns the error message.
func (e *AmbiguousPriorityError) Error() string {
	return fmt.Sprintf("rules %s share tier L%d and priority %d", strings.Join(e.RuleIDs, ", "), e.TierLevel, e.Priority)
}

// Is reports whether target is ErrAmbiguousPriority.
func (e *AmbiguousPriorityError) Is(target error) bool {
	return target == ErrAmbiguousPriority
}

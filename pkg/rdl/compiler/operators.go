package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
)

// TypeMismatchError reports an attribute whose kind does not fit the comparison.
type TypeMismatchError struct {
	Field    string
	Operator ast.Operator
	Expected facts.Kind
	Actual   facts.Kind
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for field %q (%s): expected %s, got %s", e.Field, e.Operator, e.Expected, e.Actual)
}

// comparison is a compiled field/operator/literal leaf.
type comparison struct {
	field    string
	op       ast.Operator
	literal  facts.Value
	list     []facts.Value
	pattern  *regexp.Regexp
	rendered string
}

func newComparison(c *ast.Condition) (*comparison, error) {
	cmp := &comparison{field: c.Field, op: c.Operator, rendered: c.String()}

	switch c.Operator {
	case ast.OperatorExists:
		return cmp, nil
	case ast.OperatorIn, ast.OperatorNotIn:
		raw, ok := c.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s requires a list, got %T", c.Operator, c.Value)
		}
		for _, e := range raw {
			v, err := facts.ValueOf(e)
			if err != nil {
				return nil, fmt.Errorf("%s list element: %w", c.Operator, err)
			}
			cmp.list = append(cmp.list, v)
		}
		return cmp, nil
	}

	v, err := facts.ValueOf(c.Value)
	if err != nil {
		return nil, fmt.Errorf("literal for %s: %w", c.Field, err)
	}
	cmp.literal = v

	if c.Operator == ast.OperatorMatches {
		s, _ := v.Str()
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
		}
		cmp.pattern = re
	}
	return cmp, nil
}

// eval applies the comparison. A missing attribute fails the comparison
// without error; a kind mismatch is an error.
func (cmp *comparison) eval(f *facts.Fact) (bool, string, error) {
	actual, present := f.Get(cmp.field)
	if cmp.op == ast.OperatorExists {
		return present, cmp.rendered, nil
	}
	if !present {
		return false, fmt.Sprintf("%s [absent]", cmp.rendered), nil
	}
	detail := fmt.Sprintf("%s [%s]", cmp.rendered, actual.Format())

	held, err := cmp.apply(actual)
	if err != nil {
		return false, detail, err
	}
	return held, detail, nil
}

func (cmp *comparison) apply(actual facts.Value) (bool, error) {
	switch cmp.op {
	case ast.OperatorEqual, ast.OperatorNotEqual:
		if actual.Kind() != cmp.literal.Kind() {
			return false, cmp.mismatch(cmp.literal.Kind(), actual.Kind())
		}
		eq := actual.Equal(cmp.literal)
		if cmp.op == ast.OperatorNotEqual {
			return !eq, nil
		}
		return eq, nil

	case ast.OperatorLessThan, ast.OperatorGreaterThan, ast.OperatorLessEqual, ast.OperatorGreaterEqual:
		a, ok := actual.Num()
		if !ok {
			return false, cmp.mismatch(facts.KindNumber, actual.Kind())
		}
		b, _ := cmp.literal.Num()
		switch cmp.op {
		case ast.OperatorLessThan:
			return a < b, nil
		case ast.OperatorGreaterThan:
			return a > b, nil
		case ast.OperatorLessEqual:
			return a <= b, nil
		default:
			return a >= b, nil
		}

	case ast.OperatorIn, ast.OperatorNotIn:
		kindSeen := false
		found := false
		for _, v := range cmp.list {
			if v.Kind() != actual.Kind() {
				continue
			}
			kindSeen = true
			if v.Equal(actual) {
				found = true
				break
			}
		}
		if !kindSeen && len(cmp.list) > 0 {
			return false, cmp.mismatch(cmp.list[0].Kind(), actual.Kind())
		}
		if cmp.op == ast.OperatorNotIn {
			return !found, nil
		}
		return found, nil

	case ast.OperatorContains, ast.OperatorStartsWith, ast.OperatorEndsWith, ast.OperatorMatches:
		s, ok := actual.Str()
		if !ok {
			return false, cmp.mismatch(facts.KindString, actual.Kind())
		}
		lit, _ := cmp.literal.Str()
		switch cmp.op {
		case ast.OperatorContains:
			return strings.Contains(s, lit), nil
		case ast.OperatorStartsWith:
			return strings.HasPrefix(s, lit), nil
		case ast.OperatorEndsWith:
			return strings.HasSuffix(s, lit), nil
		default:
			return cmp.pattern.MatchString(s), nil
		}
	}
	return false, fmt.Errorf("unknown operator: %q", cmp.op)
}

func (cmp *comparison) mismatch(expected, actual facts.Kind) error {
	return &TypeMismatchError{Field: cmp.field, Operator: cmp.op, Expected: expected, Actual: actual}
}

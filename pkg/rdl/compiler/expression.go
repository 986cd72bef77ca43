package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
)

// DefaultCostLimit bounds the runtime cost of one expression evaluation.
const DefaultCostLimit = 10000

var factRef = regexp.MustCompile(`\bfact\.([A-Za-z_][A-Za-z0-9_]*)`)

// newEnv declares the single "fact" variable, a map of attribute values.
func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("fact", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

// compileExpression type-checks expr and returns a condition evaluating it.
func compileExpression(env *cel.Env, expr string, costLimit uint64) (rules.Condition, error) {
	checked, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) && !checked.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must be boolean, got %s", checked.OutputType())
	}

	prg, err := env.Program(checked,
		cel.CostLimit(costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}

	refs := referencedAttributes(expr)

	return func(f *facts.Fact) (rules.Match, error) {
		summary := expr + describe(f, refs)

		out, _, err := prg.Eval(map[string]any{"fact": f.Map()})
		if err != nil {
			// An absent optional attribute fails the condition.
			if strings.Contains(err.Error(), "no such key") {
				return rules.Match{Summary: summary + ": failed"}, nil
			}
			return rules.Match{Summary: summary + ": error"}, fmt.Errorf("CEL eval error: %w", err)
		}
		held, ok := out.Value().(bool)
		if !ok {
			return rules.Match{Summary: summary + ": error"}, fmt.Errorf("expression result is %T, not bool", out.Value())
		}
		return rules.Match{Held: held, Summary: summary + ": " + verdict(held)}, nil
	}, nil
}

func referencedAttributes(expr string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range factRef.FindAllStringSubmatch(expr, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// describe renders the observed values of the referenced attributes.
func describe(f *facts.Fact, names []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		v, _ := f.Get(name)
		parts[i] = name + "=" + v.Format()
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

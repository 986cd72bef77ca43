package manager

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	"mercator-hq/adjudicator/pkg/rules"
)

// TestResult is the outcome of one embedded catalog test.
type TestResult struct {
	Name     string
	Passed   bool
	Failures []string
	Result   *engine.Result
}

// RunTests evaluates every test case against catalog and compares the
// result with its expectation.
func RunTests(catalog *rules.Catalog, tests []*ast.Test) []TestResult {
	out := make([]TestResult, 0, len(tests))
	for _, tc := range tests {
		out = append(out, runTest(catalog, tc))
	}
	return out
}

// RunTests runs the active catalog's embedded tests.
func (m *Manager) RunTests() ([]TestResult, error) {
	s := m.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return RunTests(s.catalog, s.tests), nil
}

func runTest(catalog *rules.Catalog, tc *ast.Test) TestResult {
	tr := TestResult{Name: tc.Name}

	fact, err := facts.New(tc.Name, tc.Facts)
	if err != nil {
		tr.Failures = append(tr.Failures, fmt.Sprintf("invalid facts: %v", err))
		return tr
	}

	res, err := engine.Evaluate(catalog, fact)
	tr.Result = res
	exp := tc.Expect

	switch {
	case exp.Ambiguous && !engine.IsAmbiguous(err):
		tr.Failures = append(tr.Failures, fmt.Sprintf("expected ambiguous priority, got error %v", err))
	case !exp.Ambiguous && err != nil:
		tr.Failures = append(tr.Failures, fmt.Sprintf("unexpected error: %v", err))
	}
	if res == nil {
		tr.Passed = len(tr.Failures) == 0
		return tr
	}

	if exp.Outcome != "" && !strings.EqualFold(exp.Outcome, res.Outcome()) {
		tr.Failures = append(tr.Failures, fmt.Sprintf("outcome = %s, want %s", res.Outcome(), exp.Outcome))
	}
	if exp.Rule != "" {
		got := ""
		if res.Binding != nil {
			got = res.Binding.RuleID
		}
		if got != exp.Rule {
			tr.Failures = append(tr.Failures, fmt.Sprintf("binding rule = %q, want %q", got, exp.Rule))
		}
	}
	if exp.Conflicts != nil && len(res.Conflicts) != *exp.Conflicts {
		tr.Failures = append(tr.Failures, fmt.Sprintf("conflicts = %d, want %d", len(res.Conflicts), *exp.Conflicts))
	}
	if exp.Candidates != nil {
		got := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			got[i] = c.RuleID
		}
		if strings.Join(got, ",") != strings.Join(exp.Candidates, ",") {
			tr.Failures = append(tr.Failures, fmt.Sprintf("candidates = [%s], want [%s]",
				strings.Join(got, ", "), strings.Join(exp.Candidates, ", ")))
		}
	}
	if exp.NeedsReview != nil && res.NeedsReview() != *exp.NeedsReview {
		tr.Failures = append(tr.Failures, fmt.Sprintf("needs review = %t, want %t", res.NeedsReview(), *exp.NeedsReview))
	}

	tr.Passed = len(tr.Failures) == 0
	return tr
}

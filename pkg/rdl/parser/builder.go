package parser

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/rdl/ast"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
)

// builder constructs AST nodes from the intermediate YAML structures and
// collects structural errors along the way.
type builder struct {
	sourcePath string
	maxDepth   int
	errors     *rdlErrors.ErrorList
}

func newBuilder(sourcePath string, maxDepth int) *builder {
	return &builder{
		sourcePath: sourcePath,
		maxDepth:   maxDepth,
		errors:     rdlErrors.NewErrorList(),
	}
}

func (b *builder) loc(p pos) ast.Location {
	line, col := p.line, p.column
	if line == 0 {
		line, col = 1, 1
	}
	return ast.Location{File: b.sourcePath, Line: line, Column: col}
}

func (b *builder) reportUnknown(p pos, where string, allowed []string) {
	for _, key := range p.unknown {
		b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("unknown field %q in %s", key, where),
			b.loc(p), rdlErrors.SuggestClosest(key, allowed))
	}
}

func (b *builder) buildCatalog(yc *yamlCatalog) (*ast.CatalogFile, error) {
	c := &ast.CatalogFile{
		RDLVersion:  yc.RDLVersion,
		Name:        yc.Name,
		Version:     yc.Version,
		Description: yc.Description,
		Schema:      yc.Schema,
		SourceFile:  b.sourcePath,
		Location:    b.loc(yc.at),
		Rules:       make([]*ast.Rule, 0, len(yc.Rules)),
		Tests:       make([]*ast.Test, 0, len(yc.Tests)),
	}
	b.reportUnknown(yc.at, "catalog", []string{"rdl_version", "name", "version", "description", "tiers", "schema", "rules", "tests"})

	for _, yt := range yc.Tiers {
		b.reportUnknown(yt.at, "tier", []string{"level", "name"})
		c.Tiers = append(c.Tiers, &ast.Tier{Level: yt.Level, Name: yt.Name, Location: b.loc(yt.at)})
	}

	for i := range yc.Rules {
		if r := b.buildRule(&yc.Rules[i], i); r != nil {
			c.Rules = append(c.Rules, r)
		}
	}

	for i := range yc.Tests {
		c.Tests = append(c.Tests, b.buildTest(&yc.Tests[i], i))
	}

	if b.errors.HasErrors() {
		return nil, b.errors
	}
	return c, nil
}

func (b *builder) buildRule(yr *yamlRule, index int) *ast.Rule {
	loc := b.loc(yr.at)
	label := yr.ID
	if label == "" {
		label = fmt.Sprintf("rules[%d]", index)
	}
	b.reportUnknown(yr.at, "rule "+label, []string{"id", "tier", "priority", "source", "authority", "description", "enabled", "when", "expression", "then"})

	r := &ast.Rule{
		ID:          yr.ID,
		Tier:        yr.Tier,
		Priority:    yr.Priority,
		Source:      yr.Source,
		Authority:   yr.Authority,
		Description: yr.Description,
		Enabled:     yr.Enabled,
		Expression:  strings.TrimSpace(yr.Expression),
		Location:    loc,
	}

	switch {
	case yr.When != nil && r.Expression != "":
		b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("rule %s: when and expression are mutually exclusive", label),
			loc, "keep either the condition tree or the CEL expression")
	case yr.When == nil && r.Expression == "":
		b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("rule %s: missing condition", label),
			loc, "add a 'when' block or an 'expression'")
	case yr.When != nil:
		r.When = b.buildCondition(yr.When, label, 1)
	}

	if yr.Then == nil {
		b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("rule %s: missing then block", label),
			loc, "add 'then: {outcome: ..., reason: ...}'")
	} else {
		b.reportUnknown(yr.Then.at, "then of rule "+label, []string{"outcome", "reason", "action_required", "human_review"})
		r.Then = ast.Then{
			Outcome:        strings.ToUpper(strings.TrimSpace(yr.Then.Outcome)),
			Reason:         yr.Then.Reason,
			ActionRequired: yr.Then.ActionRequired,
			HumanReview:    yr.Then.HumanReview,
		}
	}

	return r
}

func (b *builder) buildCondition(yc *yamlCondition, rule string, depth int) *ast.Condition {
	loc := b.loc(yc.at)
	b.reportUnknown(yc.at, "condition of rule "+rule, []string{"all", "any", "not", "field", "operator", "value"})

	if depth > b.maxDepth {
		b.errors.AddError(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("rule %s: condition nesting exceeds %d levels", rule, b.maxDepth), loc)
		return nil
	}

	forms := 0
	if yc.All != nil {
		forms++
	}
	if yc.Any != nil {
		forms++
	}
	if yc.Not != nil {
		forms++
	}
	if yc.Field != "" {
		forms++
	}
	if forms != 1 {
		b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
			fmt.Sprintf("rule %s: condition must have exactly one of all, any, not, field (found %d)", rule, forms),
			loc, "split the condition or wrap it in 'all'")
		return nil
	}

	switch {
	case yc.All != nil || yc.Any != nil:
		typ, list := ast.ConditionTypeAll, yc.All
		if yc.Any != nil {
			typ, list = ast.ConditionTypeAny, yc.Any
		}
		if len(list) == 0 {
			b.errors.AddError(rdlErrors.ErrorTypeStructural,
				fmt.Sprintf("rule %s: %s requires at least one condition", rule, typ), loc)
			return nil
		}
		node := &ast.Condition{Type: typ, Location: loc}
		for i := range list {
			if child := b.buildCondition(&list[i], rule, depth+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node

	case yc.Not != nil:
		child := b.buildCondition(yc.Not, rule, depth+1)
		if child == nil {
			return nil
		}
		return &ast.Condition{Type: ast.ConditionTypeNot, Children: []*ast.Condition{child}, Location: loc}

	default:
		op := ast.Operator(strings.TrimSpace(yc.Operator))
		if op == "" {
			b.errors.AddError(rdlErrors.ErrorTypeStructural,
				fmt.Sprintf("rule %s: condition on %q has no operator", rule, yc.Field), loc)
			return nil
		}
		if !isOperator(op) {
			b.errors.AddErrorWithSuggestion(rdlErrors.ErrorTypeStructural,
				fmt.Sprintf("rule %s: unknown operator %q", rule, op),
				loc, rdlErrors.SuggestClosest(string(op), operatorNames()))
			return nil
		}
		if op != ast.OperatorExists && !yc.hasValue {
			b.errors.AddError(rdlErrors.ErrorTypeStructural,
				fmt.Sprintf("rule %s: condition %s %s has no value", rule, yc.Field, op), loc)
			return nil
		}
		return &ast.Condition{
			Type:     ast.ConditionTypeSimple,
			Field:    yc.Field,
			Operator: op,
			Value:    yc.Value,
			Location: loc,
		}
	}
}

func (b *builder) buildTest(yt *yamlTest, index int) *ast.Test {
	label := yt.Name
	if label == "" {
		label = fmt.Sprintf("tests[%d]", index)
	}
	b.reportUnknown(yt.at, "test "+label, []string{"name", "description", "facts", "expect"})
	b.reportUnknown(yt.Expect.at, "expect of test "+label, []string{"outcome", "rule", "conflicts", "candidates", "ambiguous", "needs_review"})

	return &ast.Test{
		Name:        label,
		Description: yt.Description,
		Facts:       yt.Facts,
		Expect: ast.Expectation{
			Outcome:     strings.ToUpper(strings.TrimSpace(yt.Expect.Outcome)),
			Rule:        yt.Expect.Rule,
			Conflicts:   yt.Expect.Conflicts,
			Candidates:  yt.Expect.Candidates,
			Ambiguous:   yt.Expect.Ambiguous,
			NeedsReview: yt.Expect.NeedsReview,
		},
		Location: b.loc(yt.at),
	}
}

func isOperator(op ast.Operator) bool {
	for _, o := range ast.Operators() {
		if o == op {
			return true
		}
	}
	return false
}

func operatorNames() []string {
	ops := ast.Operators()
	names := make([]string, len(ops))
	for i, o := range ops {
		names[i] = string(o)
	}
	return names
}

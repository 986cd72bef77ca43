package compiler

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
	"mercator-hq/adjudicator/pkg/rules"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Compiler turns parsed catalog files into executable rules.
type Compiler struct {
	env       *cel.Env
	costLimit uint64
}

// New creates a compiler with the default expression cost limit.
func New() (*Compiler, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	return &Compiler{env: env, costLimit: DefaultCostLimit}, nil
}

// WithCostLimit sets the runtime cost limit for expressions.
func (c *Compiler) WithCostLimit(limit uint64) *Compiler {
	c.costLimit = limit
	return c
}

// Compile compiles the enabled rules of files, in file order and then rule
// order. Tier names come from the files' tier declarations, falling back to
// the default tier names.
func (c *Compiler) Compile(files ...*ast.CatalogFile) ([]rules.Rule, error) {
	tierNames := make(map[int]string)
	for _, f := range files {
		for _, t := range f.Tiers {
			if _, ok := tierNames[t.Level]; !ok && t.Name != "" {
				tierNames[t.Level] = t.Name
			}
		}
	}

	errs := rdlErrors.NewErrorList()
	var out []rules.Rule
	for _, f := range files {
		for _, r := range f.EnabledRules() {
			compiled, err := c.compileRule(r, tierNames)
			if err != nil {
				errs.AddError(rdlErrors.ErrorTypeCompile, fmt.Sprintf("rule %s: %v", r.ID, err), r.Location)
				continue
			}
			out = append(out, compiled)
		}
	}
	if errs.HasErrors() {
		return nil, errs
	}
	return out, nil
}

// Build compiles files and loads the result as a catalog.
func (c *Compiler) Build(files []*ast.CatalogFile, opts ...rules.LoadOption) (*rules.Catalog, error) {
	compiled, err := c.Compile(files...)
	if err != nil {
		return nil, err
	}
	return rules.Load(compiled, opts...)
}

func (c *Compiler) compileRule(r *ast.Rule, tierNames map[int]string) (rules.Rule, error) {
	tier := rules.DefaultTier(r.Tier)
	if name, ok := tierNames[r.Tier]; ok {
		tier.Name = name
	}

	var cond rules.Condition
	switch {
	case r.Expression != "":
		expr, err := compileExpression(c.env, r.Expression, c.costLimit)
		if err != nil {
			return rules.Rule{}, err
		}
		cond = expr
	case r.When != nil:
		root, err := compileTree(r.When)
		if err != nil {
			return rules.Rule{}, err
		}
		cond = treeCondition(root)
	default:
		return rules.Rule{}, fmt.Errorf("no condition")
	}

	outcome, err := rules.ParseOutcome(r.Then.Outcome)
	if err != nil {
		return rules.Rule{}, err
	}
	then := r.Then
	actionText := fmt.Sprintf("outcome=%s reason=%q action_required=%q human_review=%t",
		outcome, then.Reason, then.ActionRequired, then.HumanReview)

	return rules.Rule{
		ID:            r.ID,
		Tier:          tier,
		Priority:      r.Priority,
		Description:   r.Description,
		Source:        r.Source,
		Authority:     r.Authority,
		ConditionText: r.ConditionText(),
		ActionText:    actionText,
		Condition:     cond,
		Action: func(f *facts.Fact) (rules.Decision, error) {
			return rules.Decision{
				Outcome:        outcome,
				Reason:         Render(then.Reason, f),
				ActionRequired: Render(then.ActionRequired, f),
				HumanReview:    then.HumanReview,
			}, nil
		},
	}, nil
}

// Render substitutes {{name}} placeholders with the fact's attribute values.
// Absent attributes render as "absent".
func Render(tmpl string, f *facts.Fact) string {
	if tmpl == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, _ := f.Get(name)
		return v.Format()
	})
}

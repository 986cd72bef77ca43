package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
	"mercator-hq/adjudicator/pkg/rules"
)

// SupportedVersions lists accepted rdl_version values. Empty means current.
var SupportedVersions = []string{"1", "1.0"}

var (
	idPattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
	placeholderExpr = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
)

// Validator performs semantic checks over one or more parsed catalog files
// that together form a catalog.
type Validator struct {
	allowSharedPriority bool
}

// NewValidator creates a validator that requires unique priorities within a tier.
func NewValidator() *Validator {
	return &Validator{}
}

// WithSharedPriority allows enabled rules of one tier to share a priority.
func (v *Validator) WithSharedPriority(allow bool) *Validator {
	v.allowSharedPriority = allow
	return v
}

// Validate checks files together and returns an *errors.ErrorList, or nil.
func (v *Validator) Validate(files ...*ast.CatalogFile) error {
	errs := rdlErrors.NewErrorList()

	schema := v.mergeSchema(files, errs)
	v.checkTiers(files, errs)

	ids := make(map[string]ast.Location)
	type slot struct{ tier, priority int }
	slots := make(map[slot]string)

	for _, f := range files {
		if f.RDLVersion != "" && !contains(SupportedVersions, f.RDLVersion) {
			errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("unsupported rdl_version %q", f.RDLVersion),
				f.Location, fmt.Sprintf("use one of: %s", strings.Join(SupportedVersions, ", ")))
		}

		for _, r := range f.Rules {
			v.checkRule(r, schema, errs)

			if r.ID != "" {
				if first, dup := ids[r.ID]; dup {
					errs.AddError(rdlErrors.ErrorTypeSemantic,
						fmt.Sprintf("duplicate rule id %q (first defined at %s)", r.ID, first), r.Location)
				} else {
					ids[r.ID] = r.Location
				}
			}

			if !r.IsEnabled() || v.allowSharedPriority || r.Tier < 1 {
				continue
			}
			key := slot{r.Tier, r.Priority}
			if other, taken := slots[key]; taken {
				errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
					fmt.Sprintf("rule %s: priority %d in tier %d already used by %s", r.ID, r.Priority, r.Tier, other),
					r.Location, "priorities must be unique within a tier")
			} else {
				slots[key] = r.ID
			}
		}
	}

	for _, f := range files {
		for _, tc := range f.Tests {
			v.checkTest(tc, ids, errs)
		}
	}

	return errs.ToError()
}

func (v *Validator) mergeSchema(files []*ast.CatalogFile, errs *rdlErrors.ErrorList) map[string]facts.Kind {
	schema := make(map[string]facts.Kind)
	for _, f := range files {
		names := make([]string, 0, len(f.Schema))
		for name := range f.Schema {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			kind, err := facts.ParseKind(f.Schema[name])
			if err != nil {
				errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
					fmt.Sprintf("schema attribute %q: %v", name, err),
					f.Location, "use number, bool or string")
				continue
			}
			if prev, ok := schema[name]; ok && prev != kind {
				errs.AddError(rdlErrors.ErrorTypeSemantic,
					fmt.Sprintf("schema attribute %q declared as both %s and %s", name, prev, kind), f.Location)
				continue
			}
			schema[name] = kind
		}
	}
	return schema
}

func (v *Validator) checkTiers(files []*ast.CatalogFile, errs *rdlErrors.ErrorList) {
	names := make(map[int]string)
	for _, f := range files {
		for _, t := range f.Tiers {
			if t.Level < 1 {
				errs.AddError(rdlErrors.ErrorTypeSemantic, fmt.Sprintf("tier level must be >= 1, got %d", t.Level), t.Location)
				continue
			}
			if t.Name == "" {
				errs.AddError(rdlErrors.ErrorTypeSemantic, fmt.Sprintf("tier %d has no name", t.Level), t.Location)
				continue
			}
			if prev, ok := names[t.Level]; ok && prev != t.Name {
				errs.AddError(rdlErrors.ErrorTypeSemantic,
					fmt.Sprintf("tier %d named both %q and %q", t.Level, prev, t.Name), t.Location)
				continue
			}
			names[t.Level] = t.Name
		}
	}
}

func (v *Validator) checkRule(r *ast.Rule, schema map[string]facts.Kind, errs *rdlErrors.ErrorList) {
	label := r.ID
	switch {
	case r.ID == "":
		label = "<unnamed>"
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic, "rule has no id", r.Location, "add 'id: Authority_Topic_Name'")
	case !idPattern.MatchString(r.ID):
		errs.AddError(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule id %q must start with a letter and contain only letters, digits, '_', '.', '-'", r.ID), r.Location)
	}

	if r.Tier < 1 {
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: tier must be >= 1, got %d", label, r.Tier),
			r.Location, "1 is the highest authority")
	}
	if strings.TrimSpace(r.Source) == "" {
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: missing source", label),
			r.Location, "cite the regulation clause, e.g. 'UGC Regulations 2018, Section 4.2'")
	}

	if _, err := rules.ParseOutcome(r.Then.Outcome); err != nil {
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: unknown outcome %q", label, r.Then.Outcome),
			r.Location, rdlErrors.SuggestClosest(r.Then.Outcome, outcomeNames()))
	}

	if len(schema) > 0 {
		for _, m := range placeholderExpr.FindAllStringSubmatch(r.Then.Reason, -1) {
			if _, ok := schema[m[1]]; !ok {
				errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
					fmt.Sprintf("rule %s: reason references undeclared attribute %q", label, m[1]),
					r.Location, rdlErrors.SuggestClosest(m[1], schemaNames(schema)))
			}
		}
	}

	if r.When != nil {
		r.When.Walk(func(c *ast.Condition) {
			if c.Type == ast.ConditionTypeSimple {
				checkCondition(label, c, schema, errs)
			}
		})
	}
}

// checkCondition type-checks a simple condition against its literal and,
// when declared, the attribute's schema kind.
func checkCondition(rule string, c *ast.Condition, schema map[string]facts.Kind, errs *rdlErrors.ErrorList) {
	if c.Operator == ast.OperatorExists {
		return
	}

	declared, hasDecl := schema[c.Field]
	if len(schema) > 0 && !hasDecl {
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: attribute %q is not declared in the schema", rule, c.Field),
			c.Location, rdlErrors.SuggestClosest(c.Field, schemaNames(schema)))
		return
	}

	var literalKinds []facts.Kind
	switch c.Operator {
	case ast.OperatorIn, ast.OperatorNotIn:
		list, ok := c.Value.([]any)
		if !ok || len(list) == 0 {
			errs.AddError(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("rule %s: %s %s requires a non-empty list", rule, c.Field, c.Operator), c.Location)
			return
		}
		for _, e := range list {
			literalKinds = append(literalKinds, kindOf(e))
		}
	default:
		literalKinds = []facts.Kind{kindOf(c.Value)}
	}

	for _, k := range literalKinds {
		if k == facts.KindInvalid {
			errs.AddError(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("rule %s: %s %s has an unsupported literal %s", rule, c.Field, c.Operator, ast.FormatValue(c.Value)), c.Location)
			return
		}
		if hasDecl && k != declared {
			errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("rule %s: %s is %s but compared with %s literal", rule, c.Field, declared, k),
				c.Location, rdlErrors.SuggestOperators(declared.String()))
			return
		}
	}

	k := literalKinds[0]
	if hasDecl {
		k = declared
	}
	switch {
	case c.Operator.IsNumeric() && k != facts.KindNumber:
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: operator %s requires a number, %s is %s", rule, c.Operator, c.Field, k),
			c.Location, rdlErrors.SuggestOperators(k.String()))
	case c.Operator.IsString() && k != facts.KindString:
		errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
			fmt.Sprintf("rule %s: operator %s requires a string, %s is %s", rule, c.Operator, c.Field, k),
			c.Location, rdlErrors.SuggestOperators(k.String()))
	case c.Operator == ast.OperatorMatches:
		if _, err := regexp.Compile(c.Value.(string)); err != nil {
			errs.AddError(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("rule %s: invalid pattern %q: %v", rule, c.Value, err), c.Location)
		}
	}
}

func (v *Validator) checkTest(tc *ast.Test, ids map[string]ast.Location, errs *rdlErrors.ErrorList) {
	if tc.Expect.Outcome != "" && tc.Expect.Outcome != "NONE" {
		if _, err := rules.ParseOutcome(tc.Expect.Outcome); err != nil {
			errs.AddErrorWithSuggestion(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("test %q: unknown expected outcome %q", tc.Name, tc.Expect.Outcome),
				tc.Location, rdlErrors.SuggestClosest(tc.Expect.Outcome, append(outcomeNames(), "NONE")))
		}
	}
	refs := append([]string{}, tc.Expect.Candidates...)
	if tc.Expect.Rule != "" {
		refs = append(refs, tc.Expect.Rule)
	}
	for _, id := range refs {
		if _, ok := ids[id]; !ok {
			errs.AddError(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("test %q: references unknown rule %q", tc.Name, id), tc.Location)
		}
	}
	for name, raw := range tc.Facts {
		if raw == nil {
			continue
		}
		if _, err := facts.ValueOf(raw); err != nil {
			errs.AddError(rdlErrors.ErrorTypeSemantic,
				fmt.Sprintf("test %q: fact %q: %v", tc.Name, name, err), tc.Location)
		}
	}
}

func kindOf(v any) facts.Kind {
	val, err := facts.ValueOf(v)
	if err != nil {
		return facts.KindInvalid
	}
	return val.Kind()
}

func outcomeNames() []string {
	outs := rules.Outcomes()
	names := make([]string, len(outs))
	for i, o := range outs {
		names[i] = string(o)
	}
	return names
}

func schemaNames(schema map[string]facts.Kind) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

package ast

import (
	"fmt"
	"strings"
)

// Location is the source position of a node.
type Location struct {
	File   string // Path to the catalog file
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

// String returns "file:line:column".
func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true if the location has file and line information.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}

// CatalogFile is one parsed catalog document.
type CatalogFile struct {
	RDLVersion  string
	Name        string
	Version     string
	Description string

	// Tiers names the tier levels used by this file.
	Tiers []*Tier

	// Schema declares attribute kinds ("number", "bool", "string").
	Schema map[string]string

	Rules []*Rule
	Tests []*Test

	SourceFile string
	Location   Location
}

// TierName returns the name declared for level, or "".
func (c *CatalogFile) TierName(level int) string {
	for _, t := range c.Tiers {
		if t.Level == level {
			return t.Name
		}
	}
	return ""
}

// EnabledRules returns rules that are not disabled, in file order.
func (c *CatalogFile) EnabledRules() []*Rule {
	out := make([]*Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

// Tier names an authority level.
type Tier struct {
	Level    int
	Name     string
	Location Location
}

// Rule is a rule definition.
type Rule struct {
	ID          string
	Tier        int
	Priority    int
	Source      string
	Authority   string
	Description string
	Enabled     *bool

	// Exactly one of When and Expression is set.
	When       *Condition
	Expression string

	Then Then

	Location Location
}

// IsEnabled returns true unless the rule is explicitly disabled.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ConditionText renders the rule's condition for listings and catalog hashing.
func (r *Rule) ConditionText() string {
	if r.Expression != "" {
		return r.Expression
	}
	if r.When != nil {
		return r.When.String()
	}
	return ""
}

// Then is the decision a rule produces when its condition holds.
type Then struct {
	Outcome        string
	Reason         string
	ActionRequired string
	HumanReview    bool
}

// ConditionType is the kind of condition node.
type ConditionType string

const (
	ConditionTypeSimple ConditionType = "simple" // field op value
	ConditionTypeAll    ConditionType = "all"    // AND of children
	ConditionTypeAny    ConditionType = "any"    // OR of children
	ConditionTypeNot    ConditionType = "not"    // NOT of the single child
)

// Operator is a comparison operator.
type Operator string

const (
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorLessThan     Operator = "<"
	OperatorGreaterThan  Operator = ">"
	OperatorLessEqual    Operator = "<="
	OperatorGreaterEqual Operator = ">="
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not_in"
	OperatorContains     Operator = "contains"
	OperatorStartsWith   Operator = "starts_with"
	OperatorEndsWith     Operator = "ends_with"
	OperatorMatches      Operator = "matches"
	OperatorExists       Operator = "exists"
)

// Operators lists every operator.
func Operators() []Operator {
	return []Operator{
		OperatorEqual, OperatorNotEqual,
		OperatorLessThan, OperatorGreaterThan, OperatorLessEqual, OperatorGreaterEqual,
		OperatorIn, OperatorNotIn,
		OperatorContains, OperatorStartsWith, OperatorEndsWith, OperatorMatches,
		OperatorExists,
	}
}

// IsNumeric reports whether the operator only applies to numbers.
func (o Operator) IsNumeric() bool {
	switch o {
	case OperatorLessThan, OperatorGreaterThan, OperatorLessEqual, OperatorGreaterEqual:
		return true
	}
	return false
}

// IsString reports whether the operator only applies to strings.
func (o Operator) IsString() bool {
	switch o {
	case OperatorContains, OperatorStartsWith, OperatorEndsWith, OperatorMatches:
		return true
	}
	return false
}

// Condition is a node of a declarative condition tree.
type Condition struct {
	Type     ConditionType
	Field    string
	Operator Operator
	Value    any
	Children []*Condition
	Location Location
}

// String renders the condition in a compact infix form.
func (c *Condition) String() string {
	switch c.Type {
	case ConditionTypeSimple:
		if c.Operator == OperatorExists {
			return fmt.Sprintf("exists(%s)", c.Field)
		}
		return fmt.Sprintf("%s %s %s", c.Field, c.Operator, FormatValue(c.Value))
	case ConditionTypeNot:
		if len(c.Children) == 1 {
			return "not (" + c.Children[0].String() + ")"
		}
		return "not ()"
	case ConditionTypeAll, ConditionTypeAny:
		sep := " and "
		if c.Type == ConditionTypeAny {
			sep = " or "
		}
		parts := make([]string, len(c.Children))
		for i, ch := range c.Children {
			s := ch.String()
			if ch.Type == ConditionTypeAll || ch.Type == ConditionTypeAny {
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, sep)
	default:
		return "<invalid>"
	}
}

// Walk calls fn for c and every descendant, depth first.
func (c *Condition) Walk(fn func(*Condition)) {
	fn(c)
	for _, ch := range c.Children {
		ch.Walk(fn)
	}
}

// Depth returns the nesting depth of the tree.
func (c *Condition) Depth() int {
	d := 0
	for _, ch := range c.Children {
		if cd := ch.Depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// FormatValue renders a literal as it would appear in a condition.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Test is an embedded catalog test case.
type Test struct {
	Name        string
	Description string
	Facts       map[string]any
	Expect      Expectation
	Location    Location
}

// Expectation is what an embedded test asserts about an evaluation.
type Expectation struct {
	// Outcome is the binding outcome, or "NONE" for no binding.
	Outcome string

	// Rule is the binding rule id.
	Rule string

	// Conflicts is the expected number of conflicts, when set.
	Conflicts *int

	// Candidates lists the rule ids expected to fire, in catalog order.
	Candidates []string

	// Ambiguous expects an ambiguous-priority failure.
	Ambiguous bool

	// NeedsReview, when set, is compared with the result's review flag.
	NeedsReview *bool
}

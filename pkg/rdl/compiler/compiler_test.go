package compiler

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
	"mercator-hq/adjudicator/pkg/rdl/parser"
	"mercator-hq/adjudicator/pkg/rules"
)

const gradingCatalog = `rdl_version: "1.0"
name: grading
tiers:
  - level: 2
    name: L2_Accreditation
rules:
  - id: NAAC_Reevaluation_Window
    tier: 2
    priority: 900
    source: NAAC Manual 3.1
    authority: NAAC
    when:
      all:
        - field: days_since_result
          operator: "<="
          value: 30
        - field: program
          operator: in
          value: [BTech, MTech]
    then:
      outcome: accept
      reason: "Request filed {{days_since_result}} days after result for {{program}}"
      action_required: "Forward to {{ examiner }}"
  - id: University_Fee_Waiver
    tier: 3
    priority: 100
    source: Fee Ordinance 4
    expression: fact.family_income < 250000 && fact.category == "EWS"
    then:
      outcome: PARTIAL_ACCEPT
      reason: Fee waiver applies
  - id: Retired
    tier: 3
    priority: 1
    source: Old ordinance
    enabled: false
    expression: "true"
    then:
      outcome: REJECT
`

func createTestFact(t *testing.T, attrs map[string]any) *facts.Fact {
	t.Helper()
	f, err := facts.New("case-1", attrs)
	if err != nil {
		t.Fatalf("facts.New() error = %v, want nil", err)
	}
	return f
}

func simple(field string, op ast.Operator, value any) *ast.Condition {
	return &ast.Condition{Type: ast.ConditionTypeSimple, Field: field, Operator: op, Value: value}
}

func TestComparisonOperators(t *testing.T) {
	f := createTestFact(t, map[string]any{
		"score":   72,
		"program": "BTech",
		"waiver":  true,
		"remark":  "late submission",
	})

	tests := []struct {
		name string
		cond *ast.Condition
		want bool
	}{
		{"equal number", simple("score", ast.OperatorEqual, 72), true},
		{"not equal string", simple("program", ast.OperatorNotEqual, "MTech"), true},
		{"equal bool", simple("waiver", ast.OperatorEqual, true), true},
		{"less than", simple("score", ast.OperatorLessThan, 75), true},
		{"greater than", simple("score", ast.OperatorGreaterThan, 75), false},
		{"less equal boundary", simple("score", ast.OperatorLessEqual, 72), true},
		{"greater equal boundary", simple("score", ast.OperatorGreaterEqual, 72.5), false},
		{"in", simple("program", ast.OperatorIn, []any{"BTech", "MTech"}), true},
		{"not in", simple("program", ast.OperatorNotIn, []any{"PhD"}), true},
		{"contains", simple("remark", ast.OperatorContains, "late"), true},
		{"starts with", simple("remark", ast.OperatorStartsWith, "sub"), false},
		{"ends with", simple("remark", ast.OperatorEndsWith, "submission"), true},
		{"matches", simple("remark", ast.OperatorMatches, `^late\s`), true},
		{"exists present", simple("score", ast.OperatorExists, nil), true},
		{"exists absent", simple("grade", ast.OperatorExists, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := newComparison(tt.cond)
			if err != nil {
				t.Fatalf("newComparison() error = %v, want nil", err)
			}
			got, _, err := cmp.eval(f)
			if err != nil {
				t.Fatalf("eval() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComparisonAbsentAttribute(t *testing.T) {
	f := createTestFact(t, map[string]any{"score": 80})
	cmp, err := newComparison(simple("attendance", ast.OperatorLessThan, 75))
	if err != nil {
		t.Fatalf("newComparison() error = %v, want nil", err)
	}

	held, detail, err := cmp.eval(f)
	if err != nil {
		t.Fatalf("eval() error = %v, want nil", err)
	}
	if held {
		t.Error("eval() held for absent attribute")
	}
	if detail != "attendance < 75 [absent]" {
		t.Errorf("detail = %q", detail)
	}
}

func TestComparisonTypeMismatch(t *testing.T) {
	f := createTestFact(t, map[string]any{"score": "high"})
	cmp, err := newComparison(simple("score", ast.OperatorGreaterThan, 50))
	if err != nil {
		t.Fatalf("newComparison() error = %v, want nil", err)
	}

	_, _, err = cmp.eval(f)
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("eval() error = %v, want TypeMismatchError", err)
	}
	if mismatch.Expected != facts.KindNumber || mismatch.Actual != facts.KindString {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestNewComparisonErrors(t *testing.T) {
	tests := []struct {
		name string
		cond *ast.Condition
	}{
		{"in without list", simple("program", ast.OperatorIn, "BTech")},
		{"bad pattern", simple("remark", ast.OperatorMatches, "([")},
		{"unsupported literal", simple("score", ast.OperatorEqual, map[string]any{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newComparison(tt.cond); err == nil {
				t.Error("newComparison() error = nil, want error")
			}
		})
	}
}

func TestTreeConditionSummary(t *testing.T) {
	tree := &ast.Condition{
		Type: ast.ConditionTypeAll,
		Children: []*ast.Condition{
			simple("attendance_percentage", ast.OperatorLessThan, 75),
			{
				Type:     ast.ConditionTypeNot,
				Children: []*ast.Condition{simple("has_medical_certificate", ast.OperatorEqual, true)},
			},
		},
	}
	root, err := compileTree(tree)
	if err != nil {
		t.Fatalf("compileTree() error = %v, want nil", err)
	}
	cond := treeCondition(root)

	m, err := cond(createTestFact(t, map[string]any{"attendance_percentage": 72}))
	if err != nil {
		t.Fatalf("condition error = %v, want nil", err)
	}
	if !m.Held {
		t.Error("Held = false, want true")
	}
	want := "attendance_percentage < 75 [72]: held; not has_medical_certificate == true [absent]: failed"
	if m.Summary != want {
		t.Errorf("Summary = %q, want %q", m.Summary, want)
	}

	m, err = cond(createTestFact(t, map[string]any{"attendance_percentage": 72, "has_medical_certificate": true}))
	if err != nil {
		t.Fatalf("condition error = %v, want nil", err)
	}
	if m.Held {
		t.Error("Held = true with certificate, want false")
	}
}

func TestTreeAnyEvaluatesEveryChild(t *testing.T) {
	tree := &ast.Condition{
		Type: ast.ConditionTypeAny,
		Children: []*ast.Condition{
			simple("a", ast.OperatorEqual, 1),
			simple("b", ast.OperatorEqual, 2),
		},
	}
	root, err := compileTree(tree)
	if err != nil {
		t.Fatalf("compileTree() error = %v, want nil", err)
	}
	held, lines, err := root(createTestFact(t, map[string]any{"a": 1, "b": 3}))
	if err != nil {
		t.Fatalf("root() error = %v, want nil", err)
	}
	if !held {
		t.Error("held = false, want true")
	}
	if len(lines) != 2 {
		t.Errorf("len(lines) = %d, want 2", len(lines))
	}
}

func TestTreeConditionError(t *testing.T) {
	root, err := compileTree(simple("score", ast.OperatorLessThan, 10))
	if err != nil {
		t.Fatalf("compileTree() error = %v, want nil", err)
	}
	m, err := treeCondition(root)(createTestFact(t, map[string]any{"score": true}))
	if err == nil {
		t.Fatal("condition error = nil, want type mismatch")
	}
	if m.Held {
		t.Error("Held = true on error")
	}
	if !strings.HasSuffix(m.Summary, ": error") {
		t.Errorf("Summary = %q, want error suffix", m.Summary)
	}
}

func TestCompileExpression(t *testing.T) {
	env, err := newEnv()
	if err != nil {
		t.Fatalf("newEnv() error = %v, want nil", err)
	}

	tests := []struct {
		name     string
		expr     string
		attrs    map[string]any
		wantHeld bool
		wantErr  bool
	}{
		{"numeric held", "fact.income < 250000", map[string]any{"income": 120000}, true, false},
		{"numeric failed", "fact.income < 250000", map[string]any{"income": 400000}, false, false},
		{"string and", `fact.category == "EWS" && fact.income < 250000`, map[string]any{"category": "EWS", "income": 1000}, true, false},
		{"absent attribute fails", "fact.income < 250000", map[string]any{"other": 1}, false, false},
		{"has macro", "has(fact.waiver)", map[string]any{"waiver": false}, true, false},
		{"runtime type error", "fact.income < 10", map[string]any{"income": "low"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := compileExpression(env, tt.expr, DefaultCostLimit)
			if err != nil {
				t.Fatalf("compileExpression() error = %v, want nil", err)
			}
			m, err := cond(createTestFact(t, tt.attrs))
			if (err != nil) != tt.wantErr {
				t.Fatalf("condition error = %v, wantErr %v", err, tt.wantErr)
			}
			if m.Held != tt.wantHeld {
				t.Errorf("Held = %v, want %v (%s)", m.Held, tt.wantHeld, m.Summary)
			}
		})
	}
}

func TestCompileExpressionSummary(t *testing.T) {
	env, err := newEnv()
	if err != nil {
		t.Fatalf("newEnv() error = %v, want nil", err)
	}
	cond, err := compileExpression(env, "fact.b > 1 && fact.a > 1", DefaultCostLimit)
	if err != nil {
		t.Fatalf("compileExpression() error = %v, want nil", err)
	}
	m, err := cond(createTestFact(t, map[string]any{"a": 2, "b": 3}))
	if err != nil {
		t.Fatalf("condition error = %v, want nil", err)
	}
	want := "fact.b > 1 && fact.a > 1 [a=2, b=3]: held"
	if m.Summary != want {
		t.Errorf("Summary = %q, want %q", m.Summary, want)
	}
}

func TestCompileExpressionRejects(t *testing.T) {
	env, err := newEnv()
	if err != nil {
		t.Fatalf("newEnv() error = %v, want nil", err)
	}
	for _, expr := range []string{`"not a bool"`, "fact.x <", "unknown_var > 1"} {
		if _, err := compileExpression(env, expr, DefaultCostLimit); err == nil {
			t.Errorf("compileExpression(%q) error = nil, want error", expr)
		}
	}
}

func TestCompile(t *testing.T) {
	file, err := parser.NewParser().ParseBytes([]byte(gradingCatalog), "grading.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v, want nil", err)
	}
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	compiled, err := c.Compile(file)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if len(compiled) != 2 {
		t.Fatalf("len(Compile()) = %d, want 2 (disabled rule skipped)", len(compiled))
	}

	naac := compiled[0]
	if naac.Tier.Name != "L2_Accreditation" || naac.Tier.Level != 2 {
		t.Errorf("Tier = %+v", naac.Tier)
	}
	if naac.ConditionText != `days_since_result <= 30 and program in ["BTech", "MTech"]` {
		t.Errorf("ConditionText = %q", naac.ConditionText)
	}
	if compiled[1].Tier != rules.TierUniversity {
		t.Errorf("fallback Tier = %+v, want %+v", compiled[1].Tier, rules.TierUniversity)
	}

	f := createTestFact(t, map[string]any{"days_since_result": 12, "program": "BTech"})
	m, err := naac.Condition(f)
	if err != nil || !m.Held {
		t.Fatalf("Condition() = %+v, %v, want held", m, err)
	}
	d, err := naac.Action(f)
	if err != nil {
		t.Fatalf("Action() error = %v, want nil", err)
	}
	if d.Outcome != rules.OutcomeAccept {
		t.Errorf("Outcome = %s, want ACCEPT", d.Outcome)
	}
	if d.Reason != "Request filed 12 days after result for BTech" {
		t.Errorf("Reason = %q", d.Reason)
	}
	if d.ActionRequired != "Forward to absent" {
		t.Errorf("ActionRequired = %q", d.ActionRequired)
	}
}

func TestBuild(t *testing.T) {
	file, err := parser.NewParser().ParseBytes([]byte(gradingCatalog), "grading.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v, want nil", err)
	}
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	cat, err := c.Build([]*ast.CatalogFile{file}, rules.WithName("grading"))
	if err != nil {
		t.Fatalf("Build() error = %v, want nil", err)
	}
	if cat.Name() != "grading" || cat.Len() != 2 {
		t.Errorf("catalog = %s/%d, want grading/2", cat.Name(), cat.Len())
	}
}

func TestBuildVersionTracksDecisions(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	build := func(src string) string {
		t.Helper()
		file, err := parser.NewParser().ParseBytes([]byte(src), "grading.yaml")
		if err != nil {
			t.Fatalf("ParseBytes() error = %v, want nil", err)
		}
		cat, err := c.Build([]*ast.CatalogFile{file})
		if err != nil {
			t.Fatalf("Build() error = %v, want nil", err)
		}
		return cat.Version()
	}

	base := build(gradingCatalog)
	if again := build(gradingCatalog); again != base {
		t.Fatalf("Version() = %s then %s for the same source", base, again)
	}

	for name, edit := range map[string][2]string{
		"outcome":         {"outcome: accept", "outcome: REJECT"},
		"reason":          {"reason: Fee waiver applies", "reason: Fee waiver denied"},
		"action_required": {`action_required: "Forward to {{ examiner }}"`, `action_required: "Close the case"`},
		"human_review":    {"      reason: Fee waiver applies\n", "      reason: Fee waiver applies\n      human_review: true\n"},
		"authority":       {"authority: NAAC", "authority: UGC"},
	} {
		src := strings.Replace(gradingCatalog, edit[0], edit[1], 1)
		if src == gradingCatalog {
			t.Fatalf("%s: edit did not apply", name)
		}
		if v := build(src); v == base {
			t.Errorf("%s change kept version %s", name, v)
		}
	}
}

func TestCompileReportsErrors(t *testing.T) {
	file := &ast.CatalogFile{
		Rules: []*ast.Rule{
			{ID: "Bad_Expression", Tier: 1, Priority: 1, Source: "x", Expression: "fact.a +", Then: ast.Then{Outcome: "ACCEPT"}},
			{ID: "Bad_Outcome", Tier: 1, Priority: 2, Source: "x", When: simple("a", ast.OperatorEqual, 1), Then: ast.Then{Outcome: "MAYBE"}},
		},
	}
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	_, err = c.Compile(file)
	var list *rdlErrors.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Compile() error = %v, want *ErrorList", err)
	}
	if got := len(list.ByType(rdlErrors.ErrorTypeCompile)); got != 2 {
		t.Errorf("compile errors = %d, want 2", got)
	}
}

func TestRender(t *testing.T) {
	f := createTestFact(t, map[string]any{"pct": 72.5, "name": "Asha"})
	got := Render("{{name}} has {{ pct }}% ({{missing}})", f)
	if got != "Asha has 72.5% (absent)" {
		t.Errorf("Render() = %q", got)
	}
	if Render("", f) != "" {
		t.Error("Render(\"\") not empty")
	}
}

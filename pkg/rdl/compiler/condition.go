package compiler

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	"mercator-hq/adjudicator/pkg/rules"
)

// node is a compiled condition tree node. Every node reports the summary
// lines of the leaves below it.
type node func(f *facts.Fact) (held bool, lines []string, err error)

func compileTree(c *ast.Condition) (node, error) {
	switch c.Type {
	case ast.ConditionTypeSimple:
		cmp, err := newComparison(c)
		if err != nil {
			return nil, err
		}
		return func(f *facts.Fact) (bool, []string, error) {
			held, detail, err := cmp.eval(f)
			if err != nil {
				return false, []string{detail + ": error"}, err
			}
			return held, []string{detail + ": " + verdict(held)}, nil
		}, nil

	case ast.ConditionTypeAll, ast.ConditionTypeAny:
		children := make([]node, 0, len(c.Children))
		for _, ch := range c.Children {
			n, err := compileTree(ch)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		all := c.Type == ast.ConditionTypeAll
		return func(f *facts.Fact) (bool, []string, error) {
			// Every child is evaluated so the summary covers each part.
			held := all
			var lines []string
			var firstErr error
			for _, ch := range children {
				h, l, err := ch(f)
				lines = append(lines, l...)
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if all {
					held = held && h
				} else {
					held = held || h
				}
			}
			if firstErr != nil {
				return false, lines, firstErr
			}
			return held, lines, nil
		}, nil

	case ast.ConditionTypeNot:
		if len(c.Children) != 1 {
			return nil, fmt.Errorf("not requires exactly one condition")
		}
		child, err := compileTree(c.Children[0])
		if err != nil {
			return nil, err
		}
		return func(f *facts.Fact) (bool, []string, error) {
			h, lines, err := child(f)
			if err != nil {
				return false, lines, err
			}
			out := make([]string, len(lines))
			for i, l := range lines {
				out[i] = "not " + l
			}
			return !h, out, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown condition type %q", c.Type)
}

// treeCondition adapts a compiled tree to rules.Condition.
func treeCondition(root node) rules.Condition {
	return func(f *facts.Fact) (rules.Match, error) {
		held, lines, err := root(f)
		return rules.Match{Held: held && err == nil, Summary: strings.Join(lines, "; ")}, err
	}
}

func verdict(held bool) string {
	if held {
		return "held"
	}
	return "failed"
}

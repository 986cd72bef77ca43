// Package parser turns catalog YAML into the ast package's syntax tree.
//
// Parsing is structural only: it checks that every node has the right shape
// (exactly one condition form per node, known operators, a then block on
// every rule) and reports unknown keys with a suggestion. Type checks against
// the declared schema and cross-rule checks belong to the validator package.
//
//	p := parser.NewParser().WithMaxDepth(6)
//	file, err := p.Parse("catalogs/attendance.yaml")
package parser

package parser

import (
	"gopkg.in/yaml.v3"
)

// yamlCatalog is the intermediate form of a catalog file before AST construction.
type yamlCatalog struct {
	RDLVersion  string            `yaml:"rdl_version"`
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Tiers       []yamlTier        `yaml:"tiers"`
	Schema      map[string]string `yaml:"schema"`
	Rules       []yamlRule        `yaml:"rules"`
	Tests       []yamlTest        `yaml:"tests"`

	at pos
}

type yamlTier struct {
	Level int    `yaml:"level"`
	Name  string `yaml:"name"`

	at pos
}

type yamlRule struct {
	ID          string         `yaml:"id"`
	Tier        int            `yaml:"tier"`
	Priority    int            `yaml:"priority"`
	Source      string         `yaml:"source"`
	Authority   string         `yaml:"authority"`
	Description string         `yaml:"description"`
	Enabled     *bool          `yaml:"enabled"`
	When        *yamlCondition `yaml:"when"`
	Expression  string         `yaml:"expression"`
	Then        *yamlThen      `yaml:"then"`

	at pos
}

type yamlThen struct {
	Outcome        string `yaml:"outcome"`
	Reason         string `yaml:"reason"`
	ActionRequired string `yaml:"action_required"`
	HumanReview    bool   `yaml:"human_review"`

	at pos
}

type yamlCondition struct {
	All      []yamlCondition `yaml:"all"`
	Any      []yamlCondition `yaml:"any"`
	Not      *yamlCondition  `yaml:"not"`
	Field    string          `yaml:"field"`
	Operator string          `yaml:"operator"`
	Value    any             `yaml:"value"`

	at pos
	hasValue bool
}

type yamlTest struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Facts       map[string]any `yaml:"facts"`
	Expect      yamlExpect     `yaml:"expect"`

	at pos
}

type yamlExpect struct {
	Outcome     string   `yaml:"outcome"`
	Rule        string   `yaml:"rule"`
	Conflicts   *int     `yaml:"conflicts"`
	Candidates  []string `yaml:"candidates"`
	Ambiguous   bool     `yaml:"ambiguous"`
	NeedsReview *bool    `yaml:"needs_review"`

	at pos
}

// pos records where a mapping started and which of its keys were not recognized.
type pos struct {
	line    int
	column  int
	unknown []string
}

func (p *pos) capture(n *yaml.Node, allowed ...string) {
	p.line, p.column = n.Line, n.Column
	p.unknown = unknownKeys(n, allowed...)
}

// unknownKeys returns the keys of a mapping node not in allowed.
func unknownKeys(n *yaml.Node, allowed ...string) []string {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	var out []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			out = append(out, key)
		}
	}
	return out
}

func hasKey(n *yaml.Node, key string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}

func (c *yamlCatalog) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlCatalog
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = yamlCatalog(p)
	c.at.capture(n, "rdl_version", "name", "version", "description", "tiers", "schema", "rules", "tests")
	return nil
}

func (t *yamlTier) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlTier
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*t = yamlTier(p)
	t.at.capture(n, "level", "name")
	return nil
}

func (r *yamlRule) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlRule
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*r = yamlRule(p)
	r.at.capture(n, "id", "tier", "priority", "source", "authority", "description", "enabled", "when", "expression", "then")
	return nil
}

func (t *yamlThen) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlThen
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*t = yamlThen(p)
	t.at.capture(n, "outcome", "reason", "action_required", "human_review")
	return nil
}

func (c *yamlCondition) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlCondition
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = yamlCondition(p)
	c.at.capture(n, "all", "any", "not", "field", "operator", "value")
	c.hasValue = hasKey(n, "value")
	return nil
}

func (t *yamlTest) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlTest
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*t = yamlTest(p)
	t.at.capture(n, "name", "description", "facts", "expect")
	return nil
}

func (e *yamlExpect) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlExpect
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*e = yamlExpect(p)
	e.at.capture(n, "outcome", "rule", "conflicts", "candidates", "ambiguous", "needs_review")
	return nil
}

// parseYAMLBytes decodes a catalog document.
func parseYAMLBytes(data []byte) (*yamlCatalog, error) {
	var c yamlCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

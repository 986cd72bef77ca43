package rules

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"
)

// Catalog is an immutable, ordered set of rules.
type Catalog struct {
	name     string
	version  string
	rules    []Rule
	index    map[string]int
	loadedAt time.Time
}

type loadOptions struct {
	name            string
	version         string
	allowSharedPrio bool
	now             func() time.Time
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithName sets the catalog name.
func WithName(name string) LoadOption {
	return func(o *loadOptions) { o.name = name }
}

// WithVersion sets an explicit catalog version. Without it the version is a
// hash of the rule metadata and decisions.
func WithVersion(version string) LoadOption {
	return func(o *loadOptions) { o.version = version }
}

// AllowSharedPriority permits two rules in the same tier to share a priority.
// Evaluations where both fire then fail with an ambiguity error.
func AllowSharedPriority() LoadOption {
	return func(o *loadOptions) { o.allowSharedPrio = true }
}

// Load validates defs and builds a Catalog preserving their order.
func Load(defs []Rule, opts ...LoadOption) (*Catalog, error) {
	o := loadOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var problems []string
	index := make(map[string]int, len(defs))
	type slot struct{ level, priority int }
	slots := make(map[slot]string)

	for i := range defs {
		r := &defs[i]
		label := r.ID
		if label == "" {
			label = fmt.Sprintf("rule #%d", i+1)
			problems = append(problems, fmt.Sprintf("%s: missing id", label))
		} else if prev, dup := index[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate id (first defined as rule #%d)", r.ID, prev+1))
		} else {
			index[r.ID] = i
		}

		if r.Tier.Level < 1 {
			problems = append(problems, fmt.Sprintf("%s: tier level must be >= 1, got %d", label, r.Tier.Level))
		}
		if r.Source == "" {
			problems = append(problems, fmt.Sprintf("%s: missing source", label))
		}
		if r.Condition == nil {
			problems = append(problems, fmt.Sprintf("%s: missing condition", label))
		}
		if r.Action == nil {
			problems = append(problems, fmt.Sprintf("%s: missing action", label))
		}

		if !o.allowSharedPrio && r.Tier.Level >= 1 {
			key := slot{r.Tier.Level, r.Priority}
			if other, taken := slots[key]; taken {
				problems = append(problems, fmt.Sprintf("%s: priority %d in tier %s already used by %s", label, r.Priority, r.Tier, other))
			} else {
				slots[key] = label
			}
		}
	}

	if len(problems) > 0 {
		return nil, &CatalogLoadError{Catalog: o.name, Problems: problems}
	}

	c := &Catalog{
		name:     o.name,
		version:  o.version,
		rules:    append([]Rule(nil), defs...),
		index:    index,
		loadedAt: o.now(),
	}
	if c.version == "" {
		c.version = c.hash()
	}
	return c, nil
}

// hash derives a version from the metadata and decision of every rule, in order.
func (c *Catalog) hash() string {
	h := sha256.New()
	for _, r := range c.rules {
		fmt.Fprintf(h, "%s|%d|%s|%d|%s|%s|%s|%s|%s\n", r.ID, r.Tier.Level, r.Tier.Name, r.Priority,
			r.Source, r.Authority, r.Description, r.ConditionText, r.ActionText)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Version returns the catalog version.
func (c *Catalog) Version() string { return c.version }

// LoadedAt returns when the catalog was built.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns the rules in load order. The slice is a copy.
func (c *Catalog) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (Rule, bool) {
	i, ok := c.index[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Tiers returns the distinct tiers used by the catalog, highest authority first.
func (c *Catalog) Tiers() []Tier {
	seen := make(map[int]Tier)
	for _, r := range c.rules {
		if _, ok := seen[r.Tier.Level]; !ok {
			seen[r.Tier.Level] = r.Tier
		}
	}
	tiers := make([]Tier, 0, len(seen))
	for _, t := range seen {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Level < tiers[j].Level })
	return tiers
}

// Stats summarizes a catalog for listings and logs.
type Stats struct {
	Rules       int         `json:"rules"`
	RulesByTier map[int]int `json:"rules_by_tier"`
}

// Stats returns rule counts per tier level.
func (c *Catalog) Stats() Stats {
	s := Stats{Rules: len(c.rules), RulesByTier: make(map[int]int)}
	for _, r := range c.rules {
		s.RulesByTier[r.Tier.Level]++
	}
	return s
}

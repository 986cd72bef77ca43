// Package explain renders human-readable narratives of how an evaluation's
// conflicts were resolved. Narratives are markdown, suitable for CLI output
// and for attaching to audit records.
package explain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

// Narrative is the explanation of one evaluation result.
type Narrative struct {
	Summary              string `json:"summary"`
	Explanation          string `json:"explanation"`
	FinalDecisionContext string `json:"final_decision_context,omitempty"`
	Strategy             string `json:"resolution_strategy"`
	ConflictCount        int    `json:"conflicts_count"`
}

// Explain builds the narrative for result.
func Explain(result *engine.Result) Narrative {
	if result == nil {
		return Narrative{Summary: "No result", Strategy: "N/A"}
	}

	if result.Binding == nil && len(result.Candidates) > 0 {
		return explainUndecided(result)
	}

	if len(result.Conflicts) == 0 {
		n := Narrative{Summary: "No conflicts detected", Strategy: "N/A"}
		switch {
		case result.Binding == nil:
			n.Explanation = "No rule produced a binding decision for this case."
		case len(result.Candidates) == 1:
			n.Explanation = "Only one rule was applicable to this case."
		default:
			n.Explanation = fmt.Sprintf("%d rules of the same tier fired; the highest priority rule was applied.", len(result.Candidates))
		}
		if result.Binding != nil {
			n.FinalDecisionContext = finalContext(result.Binding, 0)
		}
		return n
	}

	sections := make([]string, len(result.Conflicts))
	for i, c := range result.Conflicts {
		sections[i] = explainConflict(c, result.Candidates)
	}

	n := Narrative{
		Summary:       fmt.Sprintf("%d conflict(s) detected and resolved", len(result.Conflicts)),
		Explanation:   strings.Join(sections, "\n\n"),
		Strategy:      result.Conflicts[0].Strategy,
		ConflictCount: len(result.Conflicts),
	}
	if result.Binding != nil {
		n.FinalDecisionContext = finalContext(result.Binding, len(result.Conflicts))
	}
	return n
}

// explainUndecided covers results where rules fired but none could bind,
// which happens when candidates tie on tier and priority.
func explainUndecided(result *engine.Result) Narrative {
	n := Narrative{Summary: "Ambiguous decision", Strategy: "N/A"}
	var amb *engine.AmbiguousPriorityError
	if _, _, err := engine.Resolve(result.Candidates); errors.As(err, &amb) {
		n.Explanation = fmt.Sprintf("Rules %s fired in the same tier (L%d) with the same priority (%d), so neither outranks the other. No binding decision was made.",
			strings.Join(amb.RuleIDs, ", "), amb.TierLevel, amb.Priority)
	} else {
		n.Explanation = fmt.Sprintf("%d rule(s) fired but no binding decision was made.", len(result.Candidates))
	}
	n.FinalDecisionContext = "**Human Review Required:** Yes"
	return n
}

// Summary returns short per-kind counts, e.g. "1 Authority Conflict".
func Summary(conflicts []trace.Conflict) string {
	if len(conflicts) == 0 {
		return "No conflicts"
	}
	counts := make(map[trace.ConflictKind]int)
	var kinds []trace.ConflictKind
	for _, c := range conflicts {
		if counts[c.Kind] == 0 {
			kinds = append(kinds, c.Kind)
		}
		counts[c.Kind]++
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[k], title(string(k)))
	}
	return strings.Join(parts, ", ")
}

func explainConflict(c trace.Conflict, candidates []rules.Decision) string {
	var b strings.Builder
	switch c.Kind {
	case trace.AuthorityConflict:
		b.WriteString("**Authority Conflict Detected**\n\n")
	default:
		b.WriteString("**Conflict Detected**\n\n")
	}

	b.WriteString("**Conflicting Rules:**\n")
	for _, d := range c.Competitors {
		fmt.Fprintf(&b, "- %s (%s, priority %d): %s\n", d.RuleID, d.Tier, d.Priority, d.Outcome)
	}

	fmt.Fprintf(&b, "\n**Resolution:**\nThe rule '%s' was selected", c.Winner)
	if c.Kind == trace.AuthorityConflict {
		fmt.Fprintf(&b, " based on the tier hierarchy:\n- %s\n", hierarchy(candidates))
	} else {
		b.WriteString(".\n")
	}

	if c.Explanation != "" {
		fmt.Fprintf(&b, "\n**Rationale:**\n%s\n", c.Explanation)
	}
	fmt.Fprintf(&b, "\n**Resolution Strategy:** %s", c.Strategy)
	return b.String()
}

// hierarchy lists the distinct tiers among candidates, highest authority first.
func hierarchy(candidates []rules.Decision) string {
	seen := make(map[int]rules.Tier)
	for _, d := range candidates {
		seen[d.Tier.Level] = d.Tier
	}
	levels := make([]int, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = seen[l].String()
	}
	return strings.Join(names, " > ")
}

func finalContext(d *rules.Decision, conflicts int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Final Decision:** %s\n\n", d.Outcome)
	fmt.Fprintf(&b, "**Applicable Rule:** %s\n\n", d.RuleID)
	fmt.Fprintf(&b, "**Tier:** %s\n\n", d.Tier)
	fmt.Fprintf(&b, "**Regulatory Source:** %s\n\n", d.Source)
	if conflicts > 0 {
		fmt.Fprintf(&b, "After resolving %d conflict(s), this decision carries the highest authority applicable to the case.\n\n", conflicts)
	}
	review := "No"
	if d.HumanReview {
		review = "Yes"
	}
	fmt.Fprintf(&b, "**Human Review Required:** %s", review)
	return b.String()
}

// title turns "AUTHORITY_CONFLICT" into "Authority Conflict".
func title(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

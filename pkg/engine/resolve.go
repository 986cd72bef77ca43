package engine

import (
	"fmt"
	"sort"

	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

// Resolve picks the binding decision among candidates.
//
// Candidates are ordered by tier (higher authority first) and then by
// priority (larger first). An empty input yields no binding and no error.
// When the candidates span more than one tier, exactly one authority
// conflict is reported, naming the top two candidates. Two candidates that
// share tier and priority make the result ambiguous: no binding is returned
// and the error is an *AmbiguousPriorityError.
func Resolve(candidates []rules.Decision) (*rules.Decision, []trace.Conflict, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	sorted := SortCandidates(candidates)

	if err := checkAmbiguity(sorted); err != nil {
		return nil, nil, err
	}

	binding := sorted[0]
	if len(sorted) == 1 {
		return &binding, nil, nil
	}

	var conflicts []trace.Conflict
	if distinctTiers(sorted) > 1 {
		winner, runnerUp := sorted[0], sorted[1]
		conflicts = append(conflicts, trace.Conflict{
			Kind:        trace.AuthorityConflict,
			Competitors: []rules.Decision{winner, runnerUp},
			Strategy:    trace.StrategyAuthorityPrecedence,
			Winner:      winner.RuleID,
			Explanation: fmt.Sprintf("%s supersedes %s based on authority precedence.", winner.Tier, runnerUp.Tier),
		})
	}
	return &binding, conflicts, nil
}

// SortCandidates returns a copy of candidates in resolution order.
func SortCandidates(candidates []rules.Decision) []rules.Decision {
	sorted := append([]rules.Decision(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ranksAbove(sorted[i], sorted[j])
	})
	return sorted
}

func ranksAbove(a, b rules.Decision) bool {
	if a.Tier.Level != b.Tier.Level {
		return a.Tier.Level < b.Tier.Level
	}
	return a.Priority > b.Priority
}

// checkAmbiguity expects candidates in resolution order, so ties are adjacent.
func checkAmbiguity(sorted []rules.Decision) error {
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Tier.Level != cur.Tier.Level || prev.Priority != cur.Priority {
			continue
		}
		ids := []string{prev.RuleID, cur.RuleID}
		for j := i + 1; j < len(sorted); j++ {
			next := sorted[j]
			if next.Tier.Level != cur.Tier.Level || next.Priority != cur.Priority {
				break
			}
			ids = append(ids, next.RuleID)
		}
		return &AmbiguousPriorityError{TierLevel: cur.Tier.Level, Priority: cur.Priority, RuleIDs: ids}
	}
	return nil
}

func distinctTiers(candidates []rules.Decision) int {
	seen := make(map[int]struct{}, len(candidates))
	for _, c := range candidates {
		seen[c.Tier.Level] = struct{}{}
	}
	return len(seen)
}

package parser

import (
	"fmt"
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// didYouMean returns a " (did you mean ...)" suffix when a close fuzzy match
// for name exists among candidates, and an empty string otherwise.
func didYouMean(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}

	best := slices.MinFunc(ranks, func(a, b fuzzy.Rank) int {
		return a.Distance - b.Distance
	})
	return fmt.Sprintf(" (did you mean %q?)", best.Target)
}

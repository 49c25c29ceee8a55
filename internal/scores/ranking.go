package scores

import "sort"

// Ranking decides which of two scores is better.
type Ranking int

const (
	// LowerIsBetter ranks fewer moves ahead (memory game).
	LowerIsBetter Ranking = iota
	// HigherIsBetter ranks longer streaks ahead (guessing game).
	HigherIsBetter
)

func (r Ranking) String() string {
	if r == HigherIsBetter {
		return "higher_is_better"
	}
	return "lower_is_better"
}

// Better reports whether a strictly outranks b.
func (r Ranking) Better(a, b int) bool {
	if r == HigherIsBetter {
		return a > b
	}
	return a < b
}

// Improves reports whether candidate should replace the stored best.
// With no stored best any candidate improves.
func (r Ranking) Improves(candidate, best int, hasBest bool) bool {
	if !hasBest {
		return true
	}
	return r.Better(candidate, best)
}

// Sort orders entries best first. Ties keep the earlier timestamp first.
func (r Ranking) Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return r.Better(entries[i].Score, entries[j].Score)
	})
}

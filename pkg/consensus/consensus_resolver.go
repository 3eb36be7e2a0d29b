package consensus

import (
	"math/rand"
)

// resolveConflict breaks a tie among canonical choice keys that scored
// equally under the active algorithm's ranking metric. The tied slice is in
// cast order (earliest first vote first) and is never empty.
func resolveConflict(strategy ConflictStrategy, tied []string, dist map[string]*ChoiceTally, metric func(*ChoiceTally) float64) string {
	switch strategy {
	case ResolveRandom:
		return tied[rand.Intn(len(tied))]

	case ResolveWeightedRandom:
		// Draw proportionally to each candidate's ranking metric. Conflict
		// detection requires exact metric equality, so in practice every
		// candidate carries the same mass and the draw is uniform.
		var total float64
		for _, key := range tied {
			total += metric(dist[key])
		}
		if total <= 0 {
			return tied[rand.Intn(len(tied))]
		}
		draw := rand.Float64() * total
		for _, key := range tied {
			draw -= metric(dist[key])
			if draw <= 0 {
				return key
			}
		}
		return tied[len(tied)-1]

	case ResolveFirst:
		return earliestCast(tied, dist)

	default: // ResolveHighestConfidence
		best := tied[0]
		for _, key := range tied[1:] {
			if dist[key].bestConfidence > dist[best].bestConfidence {
				best = key
			}
		}
		// Equal best confidences fall back to chronological order.
		var withBest []string
		for _, key := range tied {
			if dist[key].bestConfidence == dist[best].bestConfidence {
				withBest = append(withBest, key)
			}
		}
		if len(withBest) > 1 {
			return earliestCast(withBest, dist)
		}
		return best
	}
}

// earliestCast picks the candidate whose first contributing vote is
// chronologically first.
func earliestCast(keys []string, dist map[string]*ChoiceTally) string {
	first := keys[0]
	for _, key := range keys[1:] {
		if dist[key].firstCast.Before(dist[first].firstCast) {
			first = key
		}
	}
	return first
}

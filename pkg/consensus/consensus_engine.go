package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Compute derives a consensus result from a snapshot of votes. It is a pure
// function of its inputs (aside from tie-breaking randomness for the random
// strategies) and never fails: zero votes yield a no-consensus result.
func Compute(votes []*Vote, cfg SessionConfig) *Result {
	result := &Result{
		Algorithm:    cfg.Algorithm,
		Distribution: make(map[string]*ChoiceTally),
		CompletedAt:  time.Now(),
	}
	if len(votes) == 0 {
		result.Summary = "no votes cast"
		return result
	}

	calibration := cfg.Calibration
	if calibration <= 0 {
		calibration = 1.0
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}

	// Tally in cast order so first-seen choice values and voter lists are
	// deterministic for a given vote set.
	ordered := make([]*Vote, len(votes))
	copy(ordered, votes)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CastAt.Equal(ordered[j].CastAt) {
			return ordered[i].AgentID < ordered[j].AgentID
		}
		return ordered[i].CastAt.Before(ordered[j].CastAt)
	})

	var keys []string
	for _, v := range ordered {
		key := CanonicalKey(v.Choice)
		tally, ok := result.Distribution[key]
		if !ok {
			tally = &ChoiceTally{Choice: v.Choice, firstCast: v.CastAt}
			result.Distribution[key] = tally
			keys = append(keys, key)
		}
		confidence := math.Min(1.0, v.Confidence*calibration)
		tally.Count++
		tally.TotalWeight += v.Weight
		tally.ConfidenceSum += confidence
		tally.Score += v.Weight * confidence
		tally.Voters = append(tally.Voters, v.AgentID)
		if confidence > tally.bestConfidence {
			tally.bestConfidence = confidence
		}
		if v.CastAt.Before(tally.firstCast) {
			tally.firstCast = v.CastAt
		}
	}
	result.TotalVotes = len(ordered)

	if cfg.Algorithm == AlgorithmUnanimous {
		if len(keys) == 1 {
			key := keys[0]
			tally := result.Distribution[key]
			result.Winner = tally.Choice
			result.WinnerKey = key
			result.ConsensusReached = true
			result.Confidence = tally.ConfidenceSum / float64(tally.Count)
			result.Summary = fmt.Sprintf("unanimous on %s with %d votes", key, tally.Count)
		} else {
			result.Summary = fmt.Sprintf("no unanimity: %d votes split across %d choices",
				result.TotalVotes, len(keys))
		}
		return result
	}

	metric := rankingMetric(cfg.Algorithm)

	var totalMetric float64
	best := math.Inf(-1)
	var tied []string
	for _, key := range keys {
		m := metric(result.Distribution[key])
		totalMetric += m
		switch {
		case m > best:
			best = m
			tied = []string{key}
		case m == best:
			tied = append(tied, key)
		}
	}

	winnerKey := tied[0]
	if len(tied) > 1 {
		strategy := cfg.ConflictStrategy
		if !strategy.Valid() {
			strategy = ResolveHighestConfidence
		}
		winnerKey = resolveConflict(strategy, tied, result.Distribution, metric)
		result.Metadata.Conflict = true
		result.Metadata.ResolutionMethod = strategy
		result.Metadata.TieCandidates = append([]string(nil), tied...)
	}

	winner := result.Distribution[winnerKey]
	result.Winner = winner.Choice
	result.WinnerKey = winnerKey
	result.Confidence = winner.ConfidenceSum / float64(winner.Count)
	result.ConsensusReached = quorumReached(cfg.Algorithm, threshold, winner, result.TotalVotes, totalMetric)

	share := 0.0
	if totalMetric > 0 {
		share = metric(winner) / totalMetric
	}
	result.Summary = fmt.Sprintf("winner %s: %d of %d votes, %.0f%% support, consensus=%t",
		winnerKey, winner.Count, result.TotalVotes, share*100, result.ConsensusReached)

	return result
}

// rankingMetric returns the per-choice score the algorithm ranks by.
func rankingMetric(a Algorithm) func(*ChoiceTally) float64 {
	switch a {
	case AlgorithmMajority:
		return func(t *ChoiceTally) float64 { return float64(t.Count) }
	case AlgorithmConfidenceWeighted:
		return func(t *ChoiceTally) float64 { return t.Score }
	default:
		// Weighted and Threshold both rank by total weight.
		return func(t *ChoiceTally) float64 { return t.TotalWeight }
	}
}

// quorumReached applies the algorithm's agreement bar to the winning tally.
func quorumReached(a Algorithm, threshold float64, winner *ChoiceTally, totalVotes int, totalMetric float64) bool {
	switch a {
	case AlgorithmMajority:
		return winner.Count*2 > totalVotes
	case AlgorithmWeighted:
		return winner.TotalWeight > totalMetric/2
	case AlgorithmConfidenceWeighted:
		return totalMetric > 0 && winner.Score/totalMetric >= threshold
	case AlgorithmThreshold:
		return totalMetric > 0 && winner.TotalWeight/totalMetric >= threshold
	}
	return false
}

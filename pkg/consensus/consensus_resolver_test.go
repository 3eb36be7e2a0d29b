package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tieFixture() (map[string]*ChoiceTally, func(*ChoiceTally) float64) {
	base := time.Now()
	dist := map[string]*ChoiceTally{
		`"A"`: {Choice: "A", Count: 1, bestConfidence: 0.9, firstCast: base.Add(2 * time.Millisecond)},
		`"B"`: {Choice: "B", Count: 1, bestConfidence: 0.5, firstCast: base},
		`"C"`: {Choice: "C", Count: 1, bestConfidence: 0.7, firstCast: base.Add(time.Millisecond)},
	}
	metric := func(t *ChoiceTally) float64 { return float64(t.Count) }
	return dist, metric
}

func TestResolveConflict_HighestConfidence(t *testing.T) {
	dist, metric := tieFixture()
	winner := resolveConflict(ResolveHighestConfidence, []string{`"B"`, `"C"`, `"A"`}, dist, metric)
	assert.Equal(t, `"A"`, winner)

	t.Run("EqualConfidenceFallsBackToFirst", func(t *testing.T) {
		dist[`"A"`].bestConfidence = 0.5
		dist[`"C"`].bestConfidence = 0.5
		winner := resolveConflict(ResolveHighestConfidence, []string{`"B"`, `"C"`, `"A"`}, dist, metric)
		assert.Equal(t, `"B"`, winner, "B's contributing vote is chronologically first")
	})
}

func TestResolveConflict_First(t *testing.T) {
	dist, metric := tieFixture()
	winner := resolveConflict(ResolveFirst, []string{`"A"`, `"B"`, `"C"`}, dist, metric)
	assert.Equal(t, `"B"`, winner)
}

func TestResolveConflict_Random(t *testing.T) {
	dist, metric := tieFixture()
	tied := []string{`"A"`, `"B"`, `"C"`}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		winner := resolveConflict(ResolveRandom, tied, dist, metric)
		assert.Contains(t, tied, winner)
		seen[winner] = true
	}
	// With 200 uniform draws over 3 candidates, missing one is ~3e-36.
	assert.Len(t, seen, 3)
}

func TestResolveConflict_WeightedRandom(t *testing.T) {
	dist, metric := tieFixture()
	tied := []string{`"A"`, `"B"`, `"C"`}

	t.Run("ExactTieIsUniform", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			winner := resolveConflict(ResolveWeightedRandom, tied, dist, metric)
			assert.Contains(t, tied, winner)
			seen[winner] = true
		}
		assert.Len(t, seen, 3)
	})

	t.Run("ZeroMetricFallsBackToUniform", func(t *testing.T) {
		zero := func(*ChoiceTally) float64 { return 0 }
		winner := resolveConflict(ResolveWeightedRandom, tied, dist, zero)
		assert.Contains(t, tied, winner)
	})
}

func TestResolveConflict_SingleCandidate(t *testing.T) {
	dist, metric := tieFixture()
	for _, strategy := range []ConflictStrategy{
		ResolveHighestConfidence, ResolveRandom, ResolveWeightedRandom, ResolveFirst,
	} {
		assert.Equal(t, `"A"`, resolveConflict(strategy, []string{`"A"`}, dist, metric))
	}
}

package consensus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CastVote(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	vote, err := session.CastVote("agent1", "approve", nil)
	require.NoError(t, err)
	assert.Equal(t, "agent1", vote.AgentID)
	assert.Equal(t, 1.0, vote.Confidence)
	assert.Equal(t, 1.0, vote.Weight)
	assert.Equal(t, 1, session.VoteCount())

	t.Run("ReplaceDoesNotGrowCount", func(t *testing.T) {
		_, err := session.CastVote("agent1", "reject", &VoteOptions{Confidence: 0.4, Weight: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, session.VoteCount())

		votes := session.Votes()
		require.Len(t, votes, 1)
		assert.Equal(t, "reject", votes[0].Choice)
		assert.Equal(t, 0.4, votes[0].Confidence)
	})

	t.Run("InvalidConfidence", func(t *testing.T) {
		_, err := session.CastVote("agent2", "approve", &VoteOptions{Confidence: 1.5, Weight: 1})
		require.ErrorIs(t, err, ErrInvalidVote)
		assert.Equal(t, 1, session.VoteCount(), "rejected vote must not mutate state")
	})

	t.Run("NegativeWeight", func(t *testing.T) {
		_, err := session.CastVote("agent2", "approve", &VoteOptions{Confidence: 1, Weight: -1})
		require.ErrorIs(t, err, ErrInvalidVote)
	})

	t.Run("EmptyAgentID", func(t *testing.T) {
		_, err := session.CastVote("", "approve", nil)
		require.ErrorIs(t, err, ErrInvalidVote)
	})

	t.Run("AfterFinalize", func(t *testing.T) {
		session.Finalize()
		_, err := session.CastVote("agent3", "approve", nil)
		require.ErrorIs(t, err, ErrSessionComplete)
	})
}

func TestSession_FinalizeIdempotent(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	_, err = session.CastVote("agent1", "A", nil)
	require.NoError(t, err)

	first := session.Finalize()
	second := session.Finalize()

	assert.Same(t, first, second, "second finalize returns the cached result")
	assert.Equal(t, StatusComplete, session.Status())

	result, ok := session.Result()
	require.True(t, ok)
	assert.Same(t, first, result)
}

func TestSession_FinalizeZeroVotes(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	result := session.Finalize()

	assert.Nil(t, result.Winner)
	assert.False(t, result.ConsensusReached)
	assert.Empty(t, result.Distribution)
	assert.Equal(t, StatusComplete, session.Status())
}

func TestSession_RejectsReservedAlgorithm(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Algorithm = AlgorithmRankedChoice

	_, err := NewSession("s1", cfg, nil)
	require.ErrorIs(t, err, ErrAlgorithmUnsupported)
}

func TestSession_Events(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []EventType
	session.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	})

	_, err = session.CastVote("agent1", "A", nil)
	require.NoError(t, err)
	_, err = session.CastVote("agent1", "B", nil)
	require.NoError(t, err)
	session.Finalize()
	session.Finalize() // idempotent, no duplicate notification

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventVoteCast, EventVoteUpdated, EventComplete}, events)
}

func TestSession_EventPayloads(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	var captured []Event
	session.Subscribe(func(e Event) {
		captured = append(captured, e)
	})

	_, err = session.CastVote("agent1", "A", &VoteOptions{Confidence: 0.8, Weight: 2})
	require.NoError(t, err)
	result := session.Finalize()

	require.Len(t, captured, 2)
	assert.Equal(t, "s1", captured[0].SessionID)
	require.NotNil(t, captured[0].Vote)
	assert.Equal(t, 0.8, captured[0].Vote.Confidence)
	assert.Same(t, result, captured[1].Result)
}

func TestSession_Timeout(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	session, err := NewSession("s1", cfg, nil)
	require.NoError(t, err)

	completed := make(chan *Result, 1)
	session.Subscribe(func(e Event) {
		if e.Type == EventComplete {
			completed <- e.Result
		}
	})

	_, err = session.CastVote("agent1", "A", nil)
	require.NoError(t, err)

	select {
	case result := <-completed:
		assert.Equal(t, "A", result.Winner)
		assert.Equal(t, StatusComplete, session.Status())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auto-finalization")
	}
}

func TestSession_ManualFinalizeDisarmsTimer(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Timeout = 50 * time.Millisecond

	session, err := NewSession("s1", cfg, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	completions := 0
	session.Subscribe(func(e Event) {
		if e.Type == EventComplete {
			mu.Lock()
			completions++
			mu.Unlock()
		}
	})

	_, err = session.CastVote("agent1", "A", nil)
	require.NoError(t, err)
	session.Finalize()

	// Let the original deadline pass; the timer must not fire a second
	// completion.
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completions)
}

func TestSession_GetInfo(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	_, err = session.CastVote("agent1", "A", nil)
	require.NoError(t, err)

	info := session.GetInfo()
	assert.Equal(t, "s1", info.SessionID)
	assert.Equal(t, StatusOpen, info.Status)
	assert.Equal(t, AlgorithmMajority, info.Algorithm)
	assert.Equal(t, 1, info.VoteCount)
	assert.Nil(t, info.Result)

	session.Finalize()

	info = session.GetInfo()
	assert.Equal(t, StatusComplete, info.Status)
	require.NotNil(t, info.Result)
	assert.Equal(t, "A", info.Result.Winner)
}

func TestSession_ConcurrentVoting(t *testing.T) {
	session, err := NewSession("s1", DefaultSessionConfig(), nil)
	require.NoError(t, err)

	const agents = 50
	var wg sync.WaitGroup
	wg.Add(agents)
	for i := 0; i < agents; i++ {
		go func(n int) {
			defer wg.Done()
			choice := "A"
			if n%2 == 0 {
				choice = "B"
			}
			_, err := session.CastVote(agentName(n), choice, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, agents, session.VoteCount())

	result := session.Finalize()
	assert.Equal(t, agents, result.TotalVotes)
}

func agentName(n int) string {
	return "agent" + string(rune('A'+n%26)) + string(rune('0'+n/26))
}

package consensus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session owns the mutable vote set for one decision. It starts Open, accepts
// votes until finalized, and transitions to Complete exactly once, either by
// an explicit Finalize call or by its timeout timer. Complete is terminal.
type Session struct {
	id        string
	cfg       SessionConfig
	votes     map[string]*Vote
	status    Status
	result    *Result
	createdAt time.Time
	timer     *time.Timer
	observers []func(Event)
	logger    *zap.Logger
	mu        sync.RWMutex

	// Registry hooks, immutable after construction.
	onTimeout  func(sessionID string)
	onComplete func(sessionID string, result *Result)
}

// NewSession creates a standalone session. Sessions managed by a Registry are
// created through Registry.CreateSession instead.
func NewSession(id string, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	return newSession(id, cfg, logger, nil, nil)
}

func newSession(id string, cfg SessionConfig, logger *zap.Logger, onTimeout func(string), onComplete func(string, *Result)) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session ID cannot be empty", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:         id,
		cfg:        cfg,
		votes:      make(map[string]*Vote),
		status:     StatusOpen,
		createdAt:  time.Now(),
		logger:     logger,
		onTimeout:  onTimeout,
		onComplete: onComplete,
	}
	if cfg.Timeout > 0 {
		s.timer = time.AfterFunc(cfg.Timeout, s.expire)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CastVote inserts or replaces the agent's vote. A nil opts means full
// confidence and unit weight. Replacing an existing vote raises vote-updated
// instead of vote-cast; the vote count does not grow.
//
// Events are delivered outside the session lock, so their relative order is
// guaranteed only for serialized callers. Concurrent casts for the same agent
// may deliver vote-updated before the vote-cast it superseded.
func (s *Session) CastVote(agentID string, choice any, opts *VoteOptions) (*Vote, error) {
	vote, err := NewVote(agentID, choice, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.status == StatusComplete {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionComplete, s.id)
	}
	_, update := s.votes[agentID]
	s.votes[agentID] = vote
	count := len(s.votes)
	s.mu.Unlock()

	eventType := EventVoteCast
	if update {
		eventType = EventVoteUpdated
	}
	s.notify(Event{Type: eventType, SessionID: s.id, Vote: vote, At: vote.CastAt})

	s.logger.Debug("vote recorded",
		zap.String("sessionID", s.id),
		zap.String("agentID", agentID),
		zap.Bool("update", update),
		zap.Int("voteCount", count))

	return vote, nil
}

// Finalize computes and caches the consensus result, flipping the session to
// Complete. It is idempotent: further calls return the cached result without
// recomputation or duplicate notifications. A session with no votes finalizes
// to a no-consensus result rather than failing.
func (s *Session) Finalize() *Result {
	return s.finalize(false)
}

// expire is the timeout timer callback.
func (s *Session) expire() {
	s.finalize(true)
}

func (s *Session) finalize(fromTimer bool) *Result {
	s.mu.Lock()
	if s.status == StatusComplete {
		result := s.result
		s.mu.Unlock()
		return result
	}

	votes := make([]*Vote, 0, len(s.votes))
	for _, v := range s.votes {
		votes = append(votes, v)
	}
	result := Compute(votes, s.cfg)

	s.status = StatusComplete
	s.result = result
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if fromTimer {
		s.logger.Info("voting session timed out",
			zap.String("sessionID", s.id),
			zap.Int("votes", result.TotalVotes))
		if s.onTimeout != nil {
			s.onTimeout(s.id)
		}
	}

	s.notify(Event{Type: EventComplete, SessionID: s.id, Result: result, At: result.CompletedAt})
	if s.onComplete != nil {
		s.onComplete(s.id, result)
	}

	s.logger.Debug("voting session finalized",
		zap.String("sessionID", s.id),
		zap.String("algorithm", string(s.cfg.Algorithm)),
		zap.Bool("consensusReached", result.ConsensusReached))

	return result
}

// Result returns the cached consensus result once the session is Complete.
func (s *Session) Result() (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// VoteCount returns the number of live votes.
func (s *Session) VoteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes)
}

// Votes returns a snapshot of the live votes.
func (s *Session) Votes() []*Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := make([]*Vote, 0, len(s.votes))
	for _, v := range s.votes {
		votes = append(votes, v)
	}
	return votes
}

// GetInfo returns a read-only snapshot of the session, safe to call in any
// state. The Result field is set only once the session is Complete.
func (s *Session) GetInfo() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		SessionID: s.id,
		Status:    s.status,
		Algorithm: s.cfg.Algorithm,
		VoteCount: len(s.votes),
		CreatedAt: s.createdAt,
		Result:    s.result,
	}
}

// Subscribe registers a synchronous observer for this session's vote-cast,
// vote-updated, and complete events. Observers run in registration order on
// the goroutine that triggered the event and must not call back into the
// session's mutating methods. Vote-event ordering follows CastVote's caveat
// for concurrent callers; complete is always last.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) notify(event Event) {
	s.mu.RLock()
	observers := make([]func(Event), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(event)
	}
}

// stopTimer disarms a pending timeout, if any. Used when the registry closes
// a still-open session so no events fire for a removed session.
func (s *Session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

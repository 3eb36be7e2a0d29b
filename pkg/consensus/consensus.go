// Package consensus implements a multi-agent consensus voting engine: agents
// cast weighted, confidence-annotated votes on a decision and a configurable
// aggregation rule derives a single outcome. Sessions are managed by a
// Registry; one-shot decisions go through QuickVote.
package consensus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agent_consensus/pkg/config"
)

// Submission is one agent's entry in a QuickVote batch.
type Submission struct {
	AgentID string
	Choice  any
	Options *VoteOptions
}

// Registry creates, looks up, and destroys voting sessions by identifier and
// fans out registry-scoped notifications (session-complete, session-timeout).
type Registry struct {
	sessions  map[string]*Session
	defaults  SessionConfig
	observers []func(Event)
	history   *History
	metrics   *Metrics
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewRegistry creates a session registry. cfg may be nil, in which case the
// package defaults apply (majority, highest-confidence, threshold 0.5).
func NewRegistry(cfg *config.ConsensusConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults := DefaultSessionConfig()
	historyLimit := DefaultHistoryLimit
	if cfg != nil {
		if cfg.DefaultAlgorithm != "" {
			defaults.Algorithm = Algorithm(cfg.DefaultAlgorithm)
		}
		if cfg.ConflictResolution != "" {
			defaults.ConflictStrategy = ConflictStrategy(cfg.ConflictResolution)
		}
		if cfg.Threshold > 0 {
			defaults.Threshold = cfg.Threshold
		}
		if cfg.Calibration > 0 {
			defaults.Calibration = cfg.Calibration
		}
		if cfg.SessionTimeout > 0 {
			defaults.Timeout = cfg.SessionTimeout
		}
		if cfg.HistoryLimit > 0 {
			historyLimit = cfg.HistoryLimit
		}
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("registry defaults: %w", err)
	}

	return &Registry{
		sessions: make(map[string]*Session),
		defaults: defaults,
		history:  NewHistory(historyLimit),
		metrics:  NewMetrics(),
		logger:   logger,
	}, nil
}

// CreateSession registers a new voting session under the given identifier.
// A nil cfg uses the registry defaults. Fails without mutating state if the
// identifier is already taken.
func (r *Registry) CreateSession(id string, cfg *SessionConfig) (*Session, error) {
	sessionCfg := r.defaults
	if cfg != nil {
		sessionCfg = *cfg
	}

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	session, err := newSession(id, sessionCfg, r.logger, r.sessionTimedOut, r.sessionCompleted)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.sessions[id] = session
	r.mu.Unlock()

	r.metrics.IncrementSessionsCreated()
	r.logger.Debug("voting session created",
		zap.String("sessionID", id),
		zap.String("algorithm", string(sessionCfg.Algorithm)),
		zap.Duration("timeout", sessionCfg.Timeout))

	return session, nil
}

// GetSession returns the session for the identifier, or false if it does not
// exist or was closed. Lookups never fail.
func (r *Registry) GetSession(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// ListSessions returns the identifiers of all registered sessions, in no
// particular order.
func (r *Registry) ListSessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseSession removes the session from the registry regardless of its
// lifecycle state and disarms any pending timeout.
func (r *Registry) CloseSession(id string) error {
	r.mu.Lock()
	session, exists := r.sessions[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	session.stopTimer()
	r.logger.Debug("voting session closed", zap.String("sessionID", id))
	return nil
}

// QuickVote runs a one-shot decision: it creates an ephemeral session, casts
// all submissions, finalizes immediately, closes the session, and returns the
// result. Any invalid submission aborts the whole batch.
func (r *Registry) QuickVote(submissions []Submission, cfg *SessionConfig) (*Result, error) {
	sessionCfg := r.defaults
	if cfg != nil {
		sessionCfg = *cfg
	}
	sessionCfg.Timeout = 0 // finalized inline, no timer needed

	id := "quick-" + uuid.New().String()
	session, err := r.CreateSession(id, &sessionCfg)
	if err != nil {
		return nil, err
	}
	defer r.CloseSession(id)

	for _, sub := range submissions {
		if _, err := session.CastVote(sub.AgentID, sub.Choice, sub.Options); err != nil {
			return nil, fmt.Errorf("casting vote for agent %s: %w", sub.AgentID, err)
		}
	}

	result := session.Finalize()
	r.metrics.IncrementQuickVotes()
	return result, nil
}

// Subscribe registers a synchronous observer for registry-scoped events.
// session-timeout is delivered before the timed-out session's own complete
// event; session-complete is delivered after it.
func (r *Registry) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// History returns the registry's bounded decision history.
func (r *Registry) History() *History {
	return r.history
}

// Stats returns a snapshot of the registry's counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	active := len(r.sessions)
	r.mu.RUnlock()
	return r.metrics.GetStats(active)
}

// Session hooks

func (r *Registry) sessionTimedOut(sessionID string) {
	r.metrics.IncrementSessionsTimedOut()
	r.notify(Event{Type: EventSessionTimeout, SessionID: sessionID, At: time.Now()})
}

func (r *Registry) sessionCompleted(sessionID string, result *Result) {
	r.mu.RLock()
	session := r.sessions[sessionID]
	r.mu.RUnlock()

	r.metrics.IncrementSessionsCompleted()
	if session != nil {
		r.metrics.UpdateAverageLatency(result.CompletedAt.Sub(session.createdAt))
	}
	if result.Metadata.Conflict {
		r.metrics.IncrementConflictsResolved()
	}

	r.history.Record(&HistoryEntry{
		SessionID:  sessionID,
		Algorithm:  result.Algorithm,
		Result:     result,
		RecordedAt: result.CompletedAt,
	})

	r.notify(Event{Type: EventSessionComplete, SessionID: sessionID, At: result.CompletedAt})
}

func (r *Registry) notify(event Event) {
	r.mu.RLock()
	observers := make([]func(Event), len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, fn := range observers {
		fn(event)
	}
}

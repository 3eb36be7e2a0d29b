package consensus

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Error variables for consistent error handling
var (
	ErrInvalidVote          = errors.New("invalid vote")
	ErrSessionComplete      = errors.New("voting session already complete")
	ErrDuplicateSession     = errors.New("voting session already exists")
	ErrUnknownSession       = errors.New("voting session not found")
	ErrAlgorithmUnsupported = errors.New("consensus algorithm not supported")
	ErrInvalidConfig        = errors.New("invalid session configuration")
)

// Algorithm selects the aggregation rule used to pick a winner and decide
// whether consensus was reached.
type Algorithm string

const (
	AlgorithmMajority           Algorithm = "majority"
	AlgorithmWeighted           Algorithm = "weighted"
	AlgorithmUnanimous          Algorithm = "unanimous"
	AlgorithmConfidenceWeighted Algorithm = "confidence_weighted"
	AlgorithmThreshold          Algorithm = "threshold"
	// AlgorithmRankedChoice is reserved. Session creation rejects it until an
	// elimination-round tally lands.
	AlgorithmRankedChoice Algorithm = "ranked_choice"
)

// Supported reports whether the algorithm has a working tally.
func (a Algorithm) Supported() bool {
	switch a {
	case AlgorithmMajority, AlgorithmWeighted, AlgorithmUnanimous,
		AlgorithmConfidenceWeighted, AlgorithmThreshold:
		return true
	}
	return false
}

// ConflictStrategy selects how ties between equally-ranked choices are broken.
type ConflictStrategy string

const (
	ResolveHighestConfidence ConflictStrategy = "highest_confidence"
	ResolveRandom            ConflictStrategy = "random"
	ResolveWeightedRandom    ConflictStrategy = "weighted_random"
	ResolveFirst             ConflictStrategy = "first"
)

// Valid reports whether the strategy is one of the known tie-breakers.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case ResolveHighestConfidence, ResolveRandom, ResolveWeightedRandom, ResolveFirst:
		return true
	}
	return false
}

// Status represents the lifecycle state of a voting session
type Status string

const (
	StatusOpen     Status = "open"
	StatusComplete Status = "complete"
)

// Vote records one agent's current position on a decision. A session holds at
// most one live Vote per agent; re-casting replaces the previous record.
type Vote struct {
	AgentID    string         `json:"agent_id"`
	Choice     any            `json:"choice"`
	Confidence float64        `json:"confidence"`
	Weight     float64        `json:"weight"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CastAt     time.Time      `json:"cast_at"`
}

// VoteOptions carries the optional fields of a vote. A nil *VoteOptions means
// confidence 1.0, weight 1.0, no metadata.
type VoteOptions struct {
	Confidence float64
	Weight     float64
	Metadata   map[string]any
}

// DefaultVoteOptions returns the option defaults (full confidence, unit weight).
func DefaultVoteOptions() VoteOptions {
	return VoteOptions{Confidence: 1.0, Weight: 1.0}
}

// NewVote creates a validated Vote with CastAt stamped now.
func NewVote(agentID string, choice any, opts *VoteOptions) (*Vote, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent ID cannot be empty", ErrInvalidVote)
	}

	o := DefaultVoteOptions()
	if opts != nil {
		o = *opts
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidVote, o.Confidence)
	}
	if math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) || o.Weight < 0 {
		return nil, fmt.Errorf("%w: weight %v must be non-negative", ErrInvalidVote, o.Weight)
	}

	return &Vote{
		AgentID:    agentID,
		Choice:     choice,
		Confidence: o.Confidence,
		Weight:     o.Weight,
		Metadata:   o.Metadata,
		CastAt:     time.Now(),
	}, nil
}

// ChoiceTally aggregates all votes that selected one canonical choice.
type ChoiceTally struct {
	Choice        any      `json:"choice"`
	Count         int      `json:"count"`
	TotalWeight   float64  `json:"total_weight"`
	ConfidenceSum float64  `json:"confidence_sum"`
	Score         float64  `json:"score"`
	Voters        []string `json:"voters"`

	bestConfidence float64
	firstCast      time.Time
}

// ResultMetadata describes how the winner was selected when the ranking
// metric alone was not decisive.
type ResultMetadata struct {
	Conflict         bool             `json:"conflict"`
	ResolutionMethod ConflictStrategy `json:"resolution_method,omitempty"`
	TieCandidates    []string         `json:"tie_candidates,omitempty"`
}

// Result is the immutable outcome of a finalized voting session.
type Result struct {
	Winner           any                     `json:"winner,omitempty"`
	WinnerKey        string                  `json:"winner_key,omitempty"`
	ConsensusReached bool                    `json:"consensus_reached"`
	Confidence       float64                 `json:"confidence"`
	Algorithm        Algorithm               `json:"algorithm"`
	TotalVotes       int                     `json:"total_votes"`
	Distribution     map[string]*ChoiceTally `json:"distribution"`
	Summary          string                  `json:"summary,omitempty"`
	Metadata         ResultMetadata          `json:"metadata"`
	CompletedAt      time.Time               `json:"completed_at"`
}

// SessionInfo is a read-only snapshot of a session's state.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Algorithm Algorithm `json:"algorithm"`
	VoteCount int       `json:"vote_count"`
	CreatedAt time.Time `json:"created_at"`
	Result    *Result   `json:"result,omitempty"`
}

// EventType identifies a lifecycle notification.
type EventType string

const (
	// Session-scoped events
	EventVoteCast    EventType = "vote-cast"
	EventVoteUpdated EventType = "vote-updated"
	EventComplete    EventType = "complete"

	// Registry-scoped events
	EventSessionComplete EventType = "session-complete"
	EventSessionTimeout  EventType = "session-timeout"
)

// Event is delivered synchronously to subscribed observers. Vote is set for
// vote-cast/vote-updated, Result for complete; registry-scoped events carry
// the session ID only.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Vote      *Vote     `json:"vote,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	At        time.Time `json:"at"`
}

// SessionConfig holds the per-session consensus parameters.
type SessionConfig struct {
	Algorithm        Algorithm
	ConflictStrategy ConflictStrategy
	Threshold        float64
	Calibration      float64
	Timeout          time.Duration
}

// DefaultSessionConfig returns the configuration used when a caller supplies
// none: simple majority, highest-confidence tie-breaking, no timeout.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Algorithm:        AlgorithmMajority,
		ConflictStrategy: ResolveHighestConfidence,
		Threshold:        0.5,
		Calibration:      1.0,
	}
}

// Validate checks the configuration is usable by a session.
func (c SessionConfig) Validate() error {
	if !c.Algorithm.Supported() {
		if c.Algorithm == AlgorithmRankedChoice {
			return fmt.Errorf("%w: %s is reserved", ErrAlgorithmUnsupported, c.Algorithm)
		}
		return fmt.Errorf("%w: %q", ErrAlgorithmUnsupported, c.Algorithm)
	}
	if !c.ConflictStrategy.Valid() {
		return fmt.Errorf("%w: unknown conflict strategy %q", ErrInvalidConfig, c.ConflictStrategy)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in (0,1], got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.Calibration <= 0 {
		return fmt.Errorf("%w: calibration must be positive, got %v", ErrInvalidConfig, c.Calibration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

package consensus

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the in-memory decision history when no limit is
// configured.
const DefaultHistoryLimit = 100

// HistoryEntry records one finalized decision.
type HistoryEntry struct {
	SessionID  string    `json:"session_id"`
	Algorithm  Algorithm `json:"algorithm"`
	Result     *Result   `json:"result"`
	RecordedAt time.Time `json:"recorded_at"`
}

// History is a bounded, in-memory log of finalized decisions, oldest first.
// When the limit is reached the oldest entries are dropped. Nothing is
// persisted; the log lives and dies with the registry.
type History struct {
	limit   int
	entries []*HistoryEntry
	mu      sync.RWMutex
}

// NewHistory creates a decision history holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record appends an entry, evicting the oldest if the log is full.
func (h *History) Record(entry *HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Entries returns a snapshot of the recorded decisions, oldest first.
func (h *History) Entries() []*HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entries := make([]*HistoryEntry, len(h.entries))
	copy(entries, h.entries)
	return entries
}

// Len returns the number of recorded decisions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// ExportJSON writes the history as an indented JSON array.
func (h *History) ExportJSON(w io.Writer) error {
	entries := h.Entries()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return nil
}

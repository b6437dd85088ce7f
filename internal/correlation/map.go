// Package correlation maps server-issued message_ids to submit timestamps,
// so the event dispatcher can measure submit->DLR delay when a delivery
// receipt arrives. One Map is owned exclusively by a single session: the
// submit loop inserts, the event dispatcher removes.
package correlation

import (
	"sync"
	"time"
)

// Map is a concurrent string -> time.Time table. It makes no attempt to
// reclaim entries for which a DLR never arrives: per spec, this is an
// accepted leak bounded only by the session's lifetime.
type Map struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]time.Time)}
}

// Insert records start as the submit timestamp for messageID. A duplicate
// messageID overwrites the earlier entry — acceptable, since DLR delay
// measurement is statistical rather than exact.
func (m *Map) Insert(messageID string, start time.Time) {
	if messageID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[messageID] = start
}

// Remove deletes and returns the submit timestamp for messageID, if present.
func (m *Map) Remove(messageID string) (time.Time, bool) {
	if messageID == "" {
		return time.Time{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start, ok := m.entries[messageID]
	if ok {
		delete(m.entries, messageID)
	}
	return start, ok
}

// Len reports the number of unresolved entries. Intended for diagnostics
// only — it does not imply any bound is enforced.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

package event

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the in-memory replay window when no explicit
// capacity is configured.
const DefaultHistorySize = 100

// History keeps a bounded window of recently published events for poll-style
// consumers. Oldest events are evicted first.
type History struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewHistory returns a history window holding up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity}
}

// Add records one event, evicting the oldest entries beyond capacity.
func (h *History) Add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	if len(h.events) > h.capacity {
		trimmed := make([]Event, h.capacity)
		copy(trimmed, h.events[len(h.events)-h.capacity:])
		h.events = trimmed
	}
}

// Since returns events published strictly after the given instant, oldest
// first, capped at limit when limit > 0. A zero since returns the full window.
func (h *History) Since(since time.Time, limit int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, 0, len(h.events))
	for _, e := range h.events {
		if !since.IsZero() && !e.Timestamp.After(since) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len reports how many events are currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

package ops

import (
	"sync"

	"github.com/spacenew/triggerflow/core/workflow"
)

// DefaultTailSize bounds the in-memory invocation window served when no
// Redis store is configured.
const DefaultTailSize = 256

// Tail keeps the most recent invocation records in memory, newest last.
type Tail struct {
	mu       sync.RWMutex
	records  []workflow.Invocation
	capacity int
}

// NewTail returns a tail holding up to capacity records.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = DefaultTailSize
	}
	return &Tail{capacity: capacity}
}

// Add records one invocation, evicting the oldest entries beyond capacity.
func (t *Tail) Add(inv workflow.Invocation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, inv)
	if len(t.records) > t.capacity {
		trimmed := make([]workflow.Invocation, t.capacity)
		copy(trimmed, t.records[len(t.records)-t.capacity:])
		t.records = trimmed
	}
}

// Recent returns up to limit records, newest first.
func (t *Tail) Recent(limit int) []workflow.Invocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]workflow.Invocation, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.records[i])
	}
	return out
}

// Len reports how many records are currently retained.
func (t *Tail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

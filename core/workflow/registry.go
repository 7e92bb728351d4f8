package workflow

import (
	"sort"
	"sync"

	"github.com/spacenew/triggerflow/core/infra/logging"
)

// Registry holds the active workflow definitions keyed by ID. Definitions
// are treated as immutable once registered: replacing an ID swaps the stored
// pointer, so invocations already running keep the definition they started
// with.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*WorkflowDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*WorkflowDefinition)}
}

// Register validates the definition and installs it, replacing any previous
// definition with the same ID in one step.
func (r *Registry) Register(def *WorkflowDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}
	r.mu.Lock()
	_, replaced := r.defs[def.ID]
	r.defs[def.ID] = def
	r.mu.Unlock()

	if replaced {
		logging.Info("registry", "workflow replaced", "workflow_id", def.ID, "version", def.Version)
	} else {
		logging.Info("registry", "workflow registered", "workflow_id", def.ID, "version", def.Version)
	}
	return nil
}

// Remove drops a definition and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.defs[id]
	delete(r.defs, id)
	r.mu.Unlock()
	if ok {
		logging.Info("registry", "workflow removed", "workflow_id", id)
	}
	return ok
}

// Get returns the definition registered under id.
func (r *Registry) Get(id string) (*WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Snapshot returns the current definitions sorted by ID. The slice is a
// copy; the definitions it points at are shared and must not be mutated.
func (r *Registry) Snapshot() []*WorkflowDefinition {
	r.mu.RLock()
	out := make([]*WorkflowDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

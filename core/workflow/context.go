package workflow

import (
	"time"

	"github.com/spacenew/triggerflow/core/event"
)

// ExecutionContext carries everything templates and conditions can see while
// one invocation runs: the triggering event, results of finished actions in
// execution order, and the first failure once one happens. It belongs to a
// single invocation goroutine and is not safe for concurrent use.
type ExecutionContext struct {
	Event   event.Event
	results []ActionResult
	index   map[string]int
	failure *ErrorInfo
}

// NewExecutionContext builds a context for one event.
func NewExecutionContext(e event.Event) *ExecutionContext {
	return &ExecutionContext{Event: e, index: make(map[string]int)}
}

// AddResult appends an action result, replacing any earlier result with the
// same action ID.
func (c *ExecutionContext) AddResult(r ActionResult) {
	if i, ok := c.index[r.ActionID]; ok {
		c.results[i] = r
		return
	}
	c.index[r.ActionID] = len(c.results)
	c.results = append(c.results, r)
}

// Result returns the recorded result for an action ID.
func (c *ExecutionContext) Result(actionID string) (ActionResult, bool) {
	i, ok := c.index[actionID]
	if !ok {
		return ActionResult{}, false
	}
	return c.results[i], true
}

// Results returns all recorded results in execution order.
func (c *ExecutionContext) Results() []ActionResult {
	out := make([]ActionResult, len(c.results))
	copy(out, c.results)
	return out
}

// SetError records the first failure of the invocation.
func (c *ExecutionContext) SetError(info *ErrorInfo) {
	c.failure = info
}

// Err returns the recorded failure, if any.
func (c *ExecutionContext) Err() *ErrorInfo {
	return c.failure
}

// Scope projects the context as the map templates and conditions resolve
// against: event fields under "event" (payload keys win over the projected
// id/type/timestamp on collision), per-action results under "results", and
// the failure under "error" once set.
func (c *ExecutionContext) Scope() map[string]any {
	ev := map[string]any{
		"id":        c.Event.ID,
		"type":      c.Event.Type,
		"timestamp": c.Event.Timestamp.UTC().Format(time.RFC3339),
	}
	for k, v := range c.Event.Payload {
		ev[k] = v
	}

	results := make(map[string]any, len(c.results))
	for _, r := range c.results {
		results[r.ActionID] = r.scope()
	}

	scope := map[string]any{"event": ev, "results": results}
	if c.failure != nil {
		scope["error"] = map[string]any{
			"message":   c.failure.Message,
			"type":      c.failure.Type,
			"action_id": c.failure.ActionID,
		}
	}
	return scope
}

func (r ActionResult) scope() map[string]any {
	m := map[string]any{"status": string(r.Status)}
	if r.Output != nil {
		m["output"] = r.Output
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.ErrorType != "" {
		m["error_type"] = r.ErrorType
	}
	return m
}

package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/logging"
	"github.com/spacenew/triggerflow/core/infra/metrics"
)

const (
	defaultMaxConcurrent     = 64
	defaultInvocationTimeout = 30 * time.Second
	storeSaveTimeout         = 5 * time.Second
)

// InvocationStore persists finished invocation records.
type InvocationStore interface {
	SaveInvocation(ctx context.Context, inv *Invocation) error
}

// Engine matches incoming events against registered workflows and runs the
// matching action chains. Each match becomes one invocation executed on its
// own goroutine; the engine bounds how many run at once and gives each a
// wall-clock budget.
type Engine struct {
	defs     *Registry
	handlers *HandlerRegistry

	metrics    metrics.Metrics
	store      InvocationStore
	sem        chan struct{}
	timeout    time.Duration
	timeoutFor func(workflowID string) time.Duration

	wg sync.WaitGroup

	// OnInvocation, when set, receives every finished invocation record.
	OnInvocation func(Invocation)
}

// NewEngine creates an engine over a definition registry and an action
// handler registry.
func NewEngine(defs *Registry, handlers *HandlerRegistry) *Engine {
	return &Engine{
		defs:     defs,
		handlers: handlers,
		metrics:  metrics.Noop{},
		sem:      make(chan struct{}, defaultMaxConcurrent),
		timeout:  defaultInvocationTimeout,
	}
}

// WithMetrics sets the metrics sink.
func (e *Engine) WithMetrics(m metrics.Metrics) *Engine {
	if m != nil {
		e.metrics = m
	}
	return e
}

// WithStore sets an optional invocation store. Persistence is best effort;
// a failing store never fails an invocation.
func (e *Engine) WithStore(s InvocationStore) *Engine {
	e.store = s
	return e
}

// WithMaxConcurrent bounds how many invocations run at once.
func (e *Engine) WithMaxConcurrent(n int) *Engine {
	if n > 0 {
		e.sem = make(chan struct{}, n)
	}
	return e
}

// WithTimeout sets the default per-invocation wall-clock budget.
func (e *Engine) WithTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// WithTimeoutFor sets a per-workflow timeout override. The function returns
// zero for workflows without an override.
func (e *Engine) WithTimeoutFor(fn func(workflowID string) time.Duration) *Engine {
	e.timeoutFor = fn
	return e
}

// HandleEvent starts an invocation for every workflow whose trigger matches
// the event. It blocks while the engine is at its concurrency limit and
// returns once all matched invocations have been started; the invocations
// themselves run in the background.
func (e *Engine) HandleEvent(ctx context.Context, evt event.Event) error {
	evt.Normalize()
	e.metrics.IncEventsReceived(evt.Type)

	for _, def := range e.defs.Snapshot() {
		matched, err := matchTrigger(def, evt)
		if err != nil {
			logging.Error("engine", "trigger condition failed", "workflow_id", def.ID, "event_type", evt.Type, "error", err)
			continue
		}
		if !matched {
			continue
		}
		e.metrics.IncMatches(def.ID)

		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		e.wg.Add(1)
		go func(def *WorkflowDefinition) {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			e.runInvocation(def, evt)
		}(def)
	}
	return nil
}

// Drain waits for in-flight invocations to finish, up to the context
// deadline.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns how many invocations are currently running.
func (e *Engine) InFlight() int {
	return len(e.sem)
}

// matchTrigger reports whether the event fires the workflow. A condition
// that cannot be parsed is an error; a condition that simply does not hold
// is a normal non-match.
func matchTrigger(def *WorkflowDefinition, evt event.Event) (bool, error) {
	if def.Trigger.Type != TriggerTypeEvent || def.Trigger.Event != evt.Type {
		return false, nil
	}
	if def.Trigger.Condition == "" {
		return true, nil
	}
	return EvalCondition(def.Trigger.Condition, NewExecutionContext(evt).Scope())
}

// runInvocation executes the action chain for one matched workflow. A
// failing action halts the chain and records the failure; the error handler
// chain then runs once on a fresh time budget, and its own failures never
// cascade further.
func (e *Engine) runInvocation(def *WorkflowDefinition, evt event.Event) {
	start := time.Now().UTC()
	inv := Invocation{
		ID:              uuid.NewString(),
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		EventID:         evt.ID,
		EventType:       evt.Type,
		StartedAt:       start,
	}

	ec := NewExecutionContext(evt)
	budget := e.invocationTimeout(def.ID)

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	failure := e.runChain(ctx, def.Actions, ec)
	cancel()

	state := StateCompleted
	if failure != nil {
		state = StateErrorCompleted
		ec.SetError(failure)
		inv.Error = failure
		e.metrics.IncActionFailures(def.ID, failure.Type)

		if def.ErrorHandler != nil && len(def.ErrorHandler.Actions) > 0 {
			ectx, ecancel := context.WithTimeout(context.Background(), budget)
			e.runErrorChain(ectx, def, ec)
			ecancel()
		}
	}

	elapsed := time.Since(start)
	inv.State = state
	inv.Results = ec.Results()
	inv.DurationMS = elapsed.Milliseconds()

	e.metrics.IncInvocations(def.ID, string(state))
	e.metrics.ObserveInvocationDuration(def.ID, elapsed.Seconds())
	logging.Info("engine", "invocation finished",
		"workflow_id", def.ID, "invocation_id", inv.ID, "event_type", evt.Type,
		"state", string(state), "duration_ms", inv.DurationMS)

	if e.store != nil {
		sctx, scancel := context.WithTimeout(context.Background(), storeSaveTimeout)
		if err := e.store.SaveInvocation(sctx, &inv); err != nil {
			logging.Error("engine", "save invocation failed", "invocation_id", inv.ID, "error", err)
		}
		scancel()
	}
	if e.OnInvocation != nil {
		e.OnInvocation(inv)
	}
}

// runChain executes actions in order, stopping at the first failure.
func (e *Engine) runChain(ctx context.Context, actions []ActionSpec, ec *ExecutionContext) *ErrorInfo {
	for _, spec := range actions {
		res := Dispatch(ctx, e.handlers, spec, ec)
		ec.AddResult(res)
		if res.Status == StatusFailure {
			logging.Error("engine", "action failed",
				"action_id", spec.ID, "action_type", spec.Type,
				"error_type", res.ErrorType, "error", res.Error)
			return &ErrorInfo{Message: res.Error, Type: res.ErrorType, ActionID: res.ActionID}
		}
	}
	return nil
}

// runErrorChain executes the error handler actions with the failure exposed
// under the "error" scope. The chain halts on its first failure and is never
// re-entered, so a broken error handler cannot loop.
func (e *Engine) runErrorChain(ctx context.Context, def *WorkflowDefinition, ec *ExecutionContext) {
	for _, spec := range def.ErrorHandler.Actions {
		res := Dispatch(ctx, e.handlers, spec, ec)
		ec.AddResult(res)
		if res.Status == StatusFailure {
			logging.Error("engine", "error handler action failed",
				"workflow_id", def.ID, "action_id", spec.ID,
				"error_type", res.ErrorType, "error", res.Error)
			return
		}
	}
}

func (e *Engine) invocationTimeout(workflowID string) time.Duration {
	if e.timeoutFor != nil {
		if d := e.timeoutFor(workflowID); d > 0 {
			return d
		}
	}
	return e.timeout
}

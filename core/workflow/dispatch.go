package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ResolvedAction is an action whose template placeholders have all been
// substituted, ready to hand to a handler.
type ResolvedAction struct {
	ID      string
	Type    string
	Target  string
	Channel string
	Data    map[string]any
}

// ActionHandler executes one resolved action and returns its output, which
// becomes results.<action_id>.output for later templates. Returning an error
// marks the action failed; the engine treats failures as data, so handlers
// should return errors rather than panic.
type ActionHandler func(ctx context.Context, action ResolvedAction) (map[string]any, error)

// HandlerRegistry maps action types to handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewHandlerRegistry returns an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ActionHandler)}
}

// Register installs a handler for an action type, replacing any previous
// handler for that type.
func (r *HandlerRegistry) Register(actionType string, h ActionHandler) error {
	if actionType == "" {
		return fmt.Errorf("action type required")
	}
	if h == nil {
		return fmt.Errorf("handler required for action type %s", actionType)
	}
	r.mu.Lock()
	r.handlers[actionType] = h
	r.mu.Unlock()
	return nil
}

// Lookup returns the handler for an action type.
func (r *HandlerRegistry) Lookup(actionType string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Types returns the registered action types sorted.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Dispatch resolves one action against the execution context and runs its
// handler. Every failure mode comes back as a failed ActionResult carrying a
// stable error type token; Dispatch itself never returns an error.
func Dispatch(ctx context.Context, handlers *HandlerRegistry, spec ActionSpec, ec *ExecutionContext) ActionResult {
	action, err := resolveAction(spec, ec.Scope())
	if err != nil {
		return failedResult(spec.ID, err)
	}
	handler, ok := handlers.Lookup(spec.Type)
	if !ok {
		return failedResult(spec.ID, fmt.Errorf("%w: %s", ErrUnknownActionType, spec.Type))
	}
	output, err := invokeHandler(ctx, handler, action)
	if err != nil {
		return failedResult(spec.ID, err)
	}
	return ActionResult{ActionID: spec.ID, Status: StatusSuccess, Output: output}
}

// resolveAction substitutes placeholders in every templated field. A
// resolved template lands in Data under "message" unless the spec already
// sets one; data values keep their resolved types, the message is always
// text.
func resolveAction(spec ActionSpec, scope map[string]any) (ResolvedAction, error) {
	action := ResolvedAction{ID: spec.ID, Type: spec.Type}

	var err error
	if action.Target, err = resolveText(spec.Target, scope); err != nil {
		return action, err
	}
	if action.Channel, err = resolveText(spec.Channel, scope); err != nil {
		return action, err
	}

	data := make(map[string]any, len(spec.Data)+1)
	for k, v := range spec.Data {
		rv, err := ResolveValue(v, scope)
		if err != nil {
			return action, err
		}
		data[k] = rv
	}
	if spec.Template != "" {
		msg, err := resolveText(spec.Template, scope)
		if err != nil {
			return action, err
		}
		if _, ok := data["message"]; !ok {
			data["message"] = msg
		}
	}
	action.Data = data
	return action, nil
}

func resolveText(s string, scope map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}
	v, err := ResolveString(s, scope)
	if err != nil {
		return "", err
	}
	if text, ok := v.(string); ok {
		return text, nil
	}
	return stringify(v), nil
}

func invokeHandler(ctx context.Context, h ActionHandler, action ResolvedAction) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &panicError{actionID: action.ID, value: r}
		}
	}()
	return h(ctx, action)
}

func failedResult(actionID string, err error) ActionResult {
	return ActionResult{
		ActionID:  actionID,
		Status:    StatusFailure,
		Error:     err.Error(),
		ErrorType: classifyError(err),
	}
}

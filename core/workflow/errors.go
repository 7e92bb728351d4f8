package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Stable error type tokens recorded on action results and invocations.
// Dashboards and alerts key off these strings, so they never change.
const (
	ErrorTypeTemplate      = "template_error"
	ErrorTypeCondition     = "condition_error"
	ErrorTypeUnknownAction = "unknown_action_type"
	ErrorTypeHandler       = "handler_failure"
	ErrorTypePanic         = "handler_panic"
	ErrorTypeTimeout       = "timeout"
)

// ErrUnknownActionType marks dispatch of an action type with no registered
// handler.
var ErrUnknownActionType = errors.New("unknown action type")

// TemplateError reports malformed placeholder syntax in a template string.
// Unresolvable paths are not errors; only broken syntax is.
type TemplateError struct {
	Template string
	Msg      string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %s", e.Template, e.Msg)
}

// ConditionError reports a trigger condition that cannot be parsed.
type ConditionError struct {
	Expr string
	Msg  string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expr, e.Msg)
}

type panicError struct {
	actionID string
	value    any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("action %s: handler panic: %v", e.actionID, e.value)
}

// classifyError maps an error to its stable error type token.
func classifyError(err error) string {
	var te *TemplateError
	if errors.As(err, &te) {
		return ErrorTypeTemplate
	}
	var ce *ConditionError
	if errors.As(err, &ce) {
		return ErrorTypeCondition
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return ErrorTypePanic
	}
	if errors.Is(err, ErrUnknownActionType) {
		return ErrorTypeUnknownAction
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeHandler
}

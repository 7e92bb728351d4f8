package workflow

import "time"

// TriggerType identifies what kind of stimulus starts a workflow.
type TriggerType string

const (
	// TriggerTypeEvent fires a workflow when a matching event is published.
	TriggerTypeEvent TriggerType = "event"
)

// Status captures the outcome of a single action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// State captures the terminal state of an invocation.
type State string

const (
	// StateCompleted means every action in the chain succeeded.
	StateCompleted State = "completed"
	// StateErrorCompleted means an action failed; the error handler chain,
	// if any, was given a chance to run.
	StateErrorCompleted State = "error_completed"
)

// Trigger describes when a workflow fires.
type Trigger struct {
	Type      TriggerType `json:"type"`
	Event     string      `json:"event"`
	Condition string      `json:"condition,omitempty"` // expression
}

// ActionSpec is one step in a workflow's action chain. Template placeholders
// in Template, Target, Channel and string Data values are resolved against
// the execution context before the handler runs.
type ActionSpec struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Target   string         `json:"target,omitempty"`
	Template string         `json:"template,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ErrorHandler is the compensating action chain run after a failure.
type ErrorHandler struct {
	Actions []ActionSpec `json:"actions"`
}

// WorkflowDefinition is the persisted workflow document. Definitions are
// immutable once registered; updates replace the whole document by ID.
type WorkflowDefinition struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Description  string        `json:"description,omitempty"`
	Version      string        `json:"version,omitempty"`
	Trigger      Trigger       `json:"trigger"`
	Actions      []ActionSpec  `json:"actions"`
	ErrorHandler *ErrorHandler `json:"error_handler,omitempty"`
}

// ActionResult records the outcome of one dispatched action.
type ActionResult struct {
	ActionID  string         `json:"action_id"`
	Status    Status         `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
}

// ErrorInfo describes the first failure of an invocation. It is exposed to
// error handler templates under the "error" scope.
type ErrorInfo struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	ActionID string `json:"action_id"`
}

// Invocation is the audit record of one workflow execution against one event.
type Invocation struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflow_id"`
	WorkflowVersion string         `json:"workflow_version,omitempty"`
	EventID         string         `json:"event_id"`
	EventType       string         `json:"event_type"`
	State           State          `json:"state"`
	StartedAt       time.Time      `json:"started_at"`
	DurationMS      int64          `json:"duration_ms"`
	Results         []ActionResult `json:"results,omitempty"`
	Error           *ErrorInfo     `json:"error,omitempty"`
}

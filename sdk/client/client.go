// Package client is a minimal HTTP client for the engine's operational API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running engine over its ops endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client with a default HTTP timeout. Trailing slashes on the
// base URL are dropped.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Trigger mirrors a workflow trigger.
type Trigger struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Condition string `json:"condition,omitempty"`
}

// Action is a generic action payload.
type Action map[string]any

// Workflow mirrors a registered workflow definition.
type Workflow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	Version      string         `json:"version,omitempty"`
	Trigger      Trigger        `json:"trigger"`
	Actions      []Action       `json:"actions"`
	ErrorHandler map[string]any `json:"error_handler,omitempty"`
}

// ActionResult mirrors one action outcome inside an invocation record.
type ActionResult struct {
	ActionID  string         `json:"action_id"`
	Status    string         `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
}

// InvocationError mirrors the failure summary on an invocation.
type InvocationError struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	ActionID string `json:"action_id"`
}

// Invocation mirrors one workflow execution record.
type Invocation struct {
	ID              string           `json:"id"`
	WorkflowID      string           `json:"workflow_id"`
	WorkflowVersion string           `json:"workflow_version,omitempty"`
	EventID         string           `json:"event_id"`
	EventType       string           `json:"event_type"`
	State           string           `json:"state"`
	StartedAt       time.Time        `json:"started_at"`
	DurationMS      int64            `json:"duration_ms"`
	Results         []ActionResult   `json:"results,omitempty"`
	Error           *InvocationError `json:"error,omitempty"`
}

// Event mirrors a bus event from the engine's history window.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// InvocationQuery filters invocation listings.
type InvocationQuery struct {
	WorkflowID string
	Limit      int
}

// EventQuery filters event listings.
type EventQuery struct {
	Since time.Time
	Limit int
}

// Health fetches the engine health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWorkflows returns every registered workflow definition.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out []Workflow
	if err := c.doJSON(ctx, http.MethodGet, "/v1/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkflow fetches one workflow definition by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("workflow id required")
	}
	var out Workflow
	if err := c.doJSON(ctx, http.MethodGet, "/v1/workflows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInvocations returns recent invocation records, newest first.
func (c *Client) ListInvocations(ctx context.Context, q InvocationQuery) ([]Invocation, error) {
	query := url.Values{}
	if q.WorkflowID != "" {
		query.Set("workflow", q.WorkflowID)
	}
	if q.Limit > 0 {
		query.Set("limit", fmt.Sprint(q.Limit))
	}
	path := "/v1/invocations"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []Invocation
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents returns events from the engine's history window, oldest first.
func (c *Client) ListEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	query := url.Values{}
	if !q.Since.IsZero() {
		query.Set("since", q.Since.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		query.Set("limit", fmt.Sprint(q.Limit))
	}
	path := "/v1/events"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []Event
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), payload)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

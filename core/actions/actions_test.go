package actions

import (
	"context"
	"sync"
	"testing"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/workflow"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []event.Event
	err      error
}

func (f *fakePublisher) PublishTo(subject string, e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.events = append(f.events, e)
	return nil
}

func TestRegisterBuiltins(t *testing.T) {
	reg := workflow.NewHandlerRegistry()
	if err := RegisterBuiltins(reg, &fakePublisher{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	want := []string{"metrics", "notification", "service", "system"}
	got := reg.Types()
	if len(got) != len(want) {
		t.Fatalf("types: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types: %v, want %v", got, want)
		}
	}
}

func TestNotificationHandler(t *testing.T) {
	h := NotificationHandler()
	out, err := h(context.Background(), workflow.ResolvedAction{
		ID:      "notify_admin",
		Type:    "notification",
		Target:  "admin",
		Channel: "email",
		Data:    map[string]any{"message": "transfer done"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out["delivered"] != true || out["message"] != "transfer done" || out["target"] != "admin" {
		t.Fatalf("output: %+v", out)
	}

	if _, err := h(context.Background(), workflow.ResolvedAction{ID: "x", Data: map[string]any{}}); err == nil {
		t.Fatal("empty message accepted")
	}
}

func TestSystemHandler(t *testing.T) {
	h := SystemHandler()
	out, err := h(context.Background(), workflow.ResolvedAction{
		ID:   "log_tx",
		Data: map[string]any{"level": "info", "message": "tx t1"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out["logged"] != true {
		t.Fatalf("output: %+v", out)
	}
	// error level must not fail the action
	if _, err := h(context.Background(), workflow.ResolvedAction{ID: "x", Data: map[string]any{"level": "error", "message": "boom"}}); err != nil {
		t.Fatalf("error level: %v", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	h := MetricsHandler()
	out, err := h(context.Background(), workflow.ResolvedAction{
		ID:   "update_metrics",
		Data: map[string]any{"name": "transfers_completed", "value": float64(2)},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out["name"] != "transfers_completed" || out["value"] != float64(2) {
		t.Fatalf("output: %+v", out)
	}

	if _, err := h(context.Background(), workflow.ResolvedAction{ID: "x", Data: map[string]any{}}); err == nil {
		t.Fatal("missing name accepted")
	}
	if _, err := h(context.Background(), workflow.ResolvedAction{ID: "x", Data: map[string]any{"name": "n", "value": float64(-1)}}); err == nil {
		t.Fatal("negative value accepted")
	}
}

func TestServiceHandler(t *testing.T) {
	pub := &fakePublisher{}
	h := ServiceHandler(pub)
	out, err := h(context.Background(), workflow.ResolvedAction{
		ID:     "call_billing",
		Target: "billing",
		Data:   map[string]any{"invoice": "i-1"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out["published"] != true || out["subject"] != "tf.service.billing" {
		t.Fatalf("output: %+v", out)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events: %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != "service.request" || evt.Payload["invoice"] != "i-1" || evt.Payload["action_id"] != "call_billing" {
		t.Fatalf("event: %+v", evt)
	}
	if evt.ID == "" {
		t.Fatal("event not stamped")
	}
}

func TestServiceHandlerErrors(t *testing.T) {
	if _, err := ServiceHandler(nil)(context.Background(), workflow.ResolvedAction{ID: "x", Target: "y"}); err == nil {
		t.Fatal("nil publisher accepted")
	}
	if _, err := ServiceHandler(&fakePublisher{})(context.Background(), workflow.ResolvedAction{ID: "x"}); err == nil {
		t.Fatal("missing target accepted")
	}
}

package bus

import (
	"testing"

	"github.com/spacenew/triggerflow/core/event"
)

func TestInitJetStreamEnabled(t *testing.T) {
	t.Setenv(envUseJetStream, "")
	if initJetStreamEnabled() {
		t.Fatalf("expected jetstream disabled by default")
	}
	for _, val := range []string{"1", "true", "yes", "y", "on"} {
		t.Setenv(envUseJetStream, val)
		if !initJetStreamEnabled() {
			t.Fatalf("expected jetstream enabled for %s", val)
		}
	}
	t.Setenv(envUseJetStream, "no")
	if initJetStreamEnabled() {
		t.Fatalf("expected jetstream disabled for no")
	}
}

func TestIsDurableSubject(t *testing.T) {
	cases := map[string]bool{
		"tf.events.orders.created": true,
		"tf.events.tick":           true,
		SubjectInvocations:         false,
		"tf.service.email":         false,
		"sys.ping":                 false,
	}
	for subject, expect := range cases {
		if got := isDurableSubject(subject); got != expect {
			t.Fatalf("subject %s expected durable=%v got=%v", subject, expect, got)
		}
	}
}

func TestDurableName(t *testing.T) {
	if durableName("", "") != "" {
		t.Fatalf("expected empty durable name")
	}
	name := durableName("tf.events.>", "q")
	if name != "dur_q__tf_events_GT" {
		t.Fatalf("unexpected durable name: %s", name)
	}
	name = durableName("tf.events.*", "")
	if name != "dur_tf_events_STAR" {
		t.Fatalf("unexpected durable name for empty queue: %s", name)
	}
}

func TestEventMsgID(t *testing.T) {
	if got := eventMsgID(event.Event{}); got != "" {
		t.Fatalf("expected empty msg id, got %s", got)
	}
	if got := eventMsgID(event.Event{ID: "abc"}); got != "evt:abc" {
		t.Fatalf("unexpected msg id: %s", got)
	}
}

func TestPublishValidation(t *testing.T) {
	var b *NatsBus
	if err := b.PublishTo("tf.events.x", event.Event{Type: "x"}); err == nil {
		t.Fatalf("expected error for nil bus")
	}
	b = &NatsBus{}
	if err := b.Publish("", nil); err == nil {
		t.Fatalf("expected error for empty type")
	}
	if err := b.PublishTo("", event.Event{Type: "x"}); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestSubscribeValidation(t *testing.T) {
	var b *NatsBus
	if err := b.Subscribe("tf.events.>", "", func(event.Event) error { return nil }); err == nil {
		t.Fatalf("expected error for nil bus")
	}
	b = &NatsBus{}
	if err := b.Subscribe("", "", func(event.Event) error { return nil }); err == nil {
		t.Fatalf("expected error for empty subject")
	}
	if err := b.Subscribe("tf.events.>", "", nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}

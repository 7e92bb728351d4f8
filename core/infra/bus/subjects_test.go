package bus

import "testing"

func TestEventSubject(t *testing.T) {
	if EventSubject("") != "" {
		t.Fatalf("expected empty subject")
	}
	if got := EventSubject("orders.created"); got != "tf.events.orders.created" {
		t.Fatalf("unexpected subject: %s", got)
	}
}

func TestServiceSubject(t *testing.T) {
	if ServiceSubject("") != "" {
		t.Fatalf("expected empty subject")
	}
	if got := ServiceSubject("email_service"); got != "tf.service.email_service" {
		t.Fatalf("unexpected subject: %s", got)
	}
}

func TestEventTypeFromSubject(t *testing.T) {
	if got := EventTypeFromSubject("tf.events.orders.created"); got != "orders.created" {
		t.Fatalf("unexpected type: %s", got)
	}
	if got := EventTypeFromSubject("tf.engine.invocations"); got != "" {
		t.Fatalf("expected empty type, got %s", got)
	}
}

func TestMatchSubject(t *testing.T) {
	cases := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"tf.events.orders.created", "tf.events.orders.created", true},
		{"tf.events.>", "tf.events.orders.created", true},
		{"tf.events.>", "tf.events", false},
		{"tf.events.>", "tf.engine.invocations", false},
		{"tf.events.*", "tf.events.tick", true},
		{"tf.events.*", "tf.events.orders.created", false},
		{"tf.events.orders.*", "tf.events.orders.created", true},
		{"tf.events.orders.*", "tf.events.billing.paid", false},
		{">", "anything.at.all", true},
		{"tf.service.email", "tf.service.email", true},
		{"tf.service.email", "tf.service.sms", false},
	}
	for _, tc := range cases {
		if got := matchSubject(tc.pattern, tc.subject); got != tc.want {
			t.Fatalf("matchSubject(%q, %q) = %v, want %v", tc.pattern, tc.subject, got, tc.want)
		}
	}
}

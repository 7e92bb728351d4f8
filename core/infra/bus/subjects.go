package bus

import "strings"

// Subject layout. Events travel on a per-type subject under tf.events so
// consumers can subscribe to a single type or the whole firehose; invocation
// outcomes are mirrored on a dedicated subject for external audit consumers.
const (
	SubjectEventPrefix   = "tf.events."
	SubjectAllEvents     = "tf.events.>"
	SubjectInvocations   = "tf.engine.invocations"
	SubjectServicePrefix = "tf.service."

	QueueEngine = "triggerflow-engine"
)

// EventSubject returns the bus subject carrying events of the given type.
func EventSubject(eventType string) string {
	if eventType == "" {
		return ""
	}
	return SubjectEventPrefix + eventType
}

// ServiceSubject returns the request subject for a named external service.
func ServiceSubject(target string) string {
	if target == "" {
		return ""
	}
	return SubjectServicePrefix + target
}

// EventTypeFromSubject strips the event prefix from a subject, returning ""
// for subjects outside the event namespace.
func EventTypeFromSubject(subject string) string {
	if !strings.HasPrefix(subject, SubjectEventPrefix) {
		return ""
	}
	return strings.TrimPrefix(subject, SubjectEventPrefix)
}

// matchSubject reports whether a subject matches a NATS-style pattern where
// "*" matches one token and a trailing ">" matches one or more tokens.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok == "*" {
			continue
		}
		if tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

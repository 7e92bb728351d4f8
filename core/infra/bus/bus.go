package bus

import (
	"errors"

	"github.com/spacenew/triggerflow/core/event"
)

// EventBus is the transport surface the engine service composes against.
// Publish must not block the caller on downstream workflow execution.
type EventBus interface {
	Publish(eventType string, payload map[string]interface{}) error
	PublishEvent(e event.Event) error
	PublishTo(subject string, e event.Event) error
	Subscribe(subject, queue string, handler func(event.Event) error) error
	Close()
}

var (
	errNilBus       = errors.New("bus not initialized")
	errEmptyType    = errors.New("empty event type")
	errEmptySubject = errors.New("empty subject")
	errNilHandler   = errors.New("nil handler")
	errClosed       = errors.New("bus closed")
)

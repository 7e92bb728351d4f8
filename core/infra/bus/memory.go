package bus

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/spacenew/triggerflow/core/event"
)

const defaultSubscriberBuffer = 256

// MemoryBus fans events out to in-process subscribers. Publish never blocks:
// each subscriber drains a bounded buffer on its own goroutine, and events
// beyond the buffer are dropped with a log line.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []*memorySub
	queues map[string]*uint64
	buffer int
	closed bool
	wg     sync.WaitGroup
}

type memorySub struct {
	pattern string
	queue   string
	ch      chan event.Event
}

// NewMemoryBus returns a bus whose subscribers buffer up to buffer events.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &MemoryBus{buffer: buffer, queues: map[string]*uint64{}}
}

// Publish stamps and sends an event built from a type and payload.
func (b *MemoryBus) Publish(eventType string, payload map[string]interface{}) error {
	if eventType == "" {
		return errEmptyType
	}
	return b.PublishEvent(event.New(eventType, payload))
}

// PublishEvent sends an event on its per-type subject.
func (b *MemoryBus) PublishEvent(e event.Event) error {
	if e.Type == "" {
		return errEmptyType
	}
	return b.PublishTo(EventSubject(e.Type), e)
}

// PublishTo delivers an event to every subscriber whose pattern matches the
// subject. Subscribers sharing a queue name get one delivery per queue.
func (b *MemoryBus) PublishTo(subject string, e event.Event) error {
	if b == nil {
		return errNilBus
	}
	if subject == "" {
		return errEmptySubject
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}
	var queueMatches map[string][]*memorySub
	for _, sub := range b.subs {
		if !matchSubject(sub.pattern, subject) {
			continue
		}
		if sub.queue == "" {
			sub.send(e)
			continue
		}
		if queueMatches == nil {
			queueMatches = map[string][]*memorySub{}
		}
		queueMatches[sub.queue] = append(queueMatches[sub.queue], sub)
	}
	for queue, members := range queueMatches {
		counter := b.queues[queue]
		idx := int((atomic.AddUint64(counter, 1) - 1) % uint64(len(members)))
		members[idx].send(e)
	}
	return nil
}

// Subscribe attaches a handler fed by a dedicated goroutine. The subject may
// use NATS-style wildcards.
func (b *MemoryBus) Subscribe(subject, queue string, handler func(event.Event) error) error {
	if b == nil {
		return errNilBus
	}
	if subject == "" {
		return errEmptySubject
	}
	if handler == nil {
		return errNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	sub := &memorySub{pattern: subject, queue: queue, ch: make(chan event.Event, b.buffer)}
	b.subs = append(b.subs, sub)
	if queue != "" {
		if _, ok := b.queues[queue]; !ok {
			var n uint64
			b.queues[queue] = &n
		}
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for e := range sub.ch {
			if err := handler(e); err != nil {
				log.Printf("memory bus: handler error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops delivery and waits for subscriber goroutines to drain.
func (b *MemoryBus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (s *memorySub) send(e event.Event) {
	select {
	case s.ch <- e:
	default:
		log.Printf("memory bus: subscriber buffer full, dropping event type=%s id=%s", e.Type, e.ID)
	}
}

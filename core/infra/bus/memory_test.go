package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacenew/triggerflow/core/event"
)

func waitFor(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return event.Event{}
	}
}

func TestMemoryBusFanout(t *testing.T) {
	b := NewMemoryBus(8)
	defer b.Close()

	got1 := make(chan event.Event, 1)
	got2 := make(chan event.Event, 1)
	if err := b.Subscribe(SubjectAllEvents, "", func(e event.Event) error {
		got1 <- e
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe(SubjectAllEvents, "", func(e event.Event) error {
		got2 <- e
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish("orders.created", map[string]interface{}{"order_id": "o-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	e1 := waitFor(t, got1)
	e2 := waitFor(t, got2)
	if e1.Type != "orders.created" || e2.Type != "orders.created" {
		t.Fatalf("unexpected event types: %s %s", e1.Type, e2.Type)
	}
	if e1.ID == "" || e1.Timestamp.IsZero() {
		t.Fatalf("expected stamped event, got %+v", e1)
	}
}

func TestMemoryBusQueueGroupSingleDelivery(t *testing.T) {
	b := NewMemoryBus(64)
	defer b.Close()

	var delivered int64
	var wg sync.WaitGroup
	wg.Add(10)
	handler := func(e event.Event) error {
		atomic.AddInt64(&delivered, 1)
		wg.Done()
		return nil
	}
	if err := b.Subscribe(SubjectAllEvents, QueueEngine, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe(SubjectAllEvents, QueueEngine, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := b.Publish("tick", nil); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for deliveries")
	}
	if n := atomic.LoadInt64(&delivered); n != 10 {
		t.Fatalf("expected 10 deliveries across queue group, got %d", n)
	}
}

func TestMemoryBusPatternMatch(t *testing.T) {
	b := NewMemoryBus(8)
	defer b.Close()

	got := make(chan event.Event, 4)
	if err := b.Subscribe("tf.events.orders.*", "", func(e event.Event) error {
		got <- e
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish("orders.created", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish("billing.invoice.paid", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	e := waitFor(t, got)
	if e.Type != "orders.created" {
		t.Fatalf("unexpected event: %s", e.Type)
	}
	select {
	case e := <-got:
		t.Fatalf("unexpected extra delivery: %s", e.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBusPublishDoesNotBlock(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()

	block := make(chan struct{})
	if err := b.Subscribe(SubjectAllEvents, "", func(e event.Event) error {
		<-block
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = b.Publish("tick", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
	close(block)
}

func TestMemoryBusClose(t *testing.T) {
	b := NewMemoryBus(8)
	if err := b.Subscribe(SubjectAllEvents, "", func(e event.Event) error { return nil }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b.Close()
	if err := b.Publish("tick", nil); err == nil {
		t.Fatalf("expected publish to fail after close")
	}
	if err := b.Subscribe(SubjectAllEvents, "", func(e event.Event) error { return nil }); err == nil {
		t.Fatalf("expected subscribe to fail after close")
	}
	b.Close()
}

package event

import (
	"sync"
	"testing"
	"time"
)

func TestNewStampsIdentity(t *testing.T) {
	e := New("billing.invoice.paid", map[string]interface{}{"invoice_id": "inv-1"})
	if e.ID == "" {
		t.Fatalf("expected stamped id")
	}
	if e.Timestamp.IsZero() {
		t.Fatalf("expected stamped timestamp")
	}
	if e.Type != "billing.invoice.paid" {
		t.Fatalf("unexpected type: %s", e.Type)
	}
}

func TestUnmarshalNormalizes(t *testing.T) {
	e, err := Unmarshal([]byte(`{"type":"orders.created","payload":{"order_id":"o-9"}}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("expected normalized identity, got %+v", e)
	}
	if e.Payload["order_id"] != "o-9" {
		t.Fatalf("unexpected payload: %#v", e.Payload)
	}
}

func TestUnmarshalRejectsMissingType(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"payload":{}}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed envelope")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := New("orders.created", map[string]interface{}{"order_id": "o-1"})
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || out.Type != in.Type {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		e := New("tick", map[string]interface{}{"n": i})
		h.Add(e)
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 retained, got %d", h.Len())
	}
	got := h.Since(time.Time{}, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Payload["n"] != 2 {
		t.Fatalf("expected oldest retained to be n=2, got %#v", got[0].Payload)
	}
}

func TestHistorySinceFiltersAndLimits(t *testing.T) {
	h := NewHistory(10)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		h.Add(Event{ID: "e", Type: "tick", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	got := h.Since(base.Add(1*time.Second), 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 events after cutoff, got %d", len(got))
	}
	got = h.Since(time.Time{}, 2)
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
}

func TestHistoryDefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	if h.capacity != DefaultHistorySize {
		t.Fatalf("expected default capacity %d, got %d", DefaultHistorySize, h.capacity)
	}
}

func TestHistoryConcurrentAdds(t *testing.T) {
	h := NewHistory(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Add(New("tick", nil))
			}
		}()
	}
	wg.Wait()
	if h.Len() != 50 {
		t.Fatalf("expected capped length 50, got %d", h.Len())
	}
}

package ops

import (
	"fmt"
	"testing"

	"github.com/spacenew/triggerflow/core/workflow"
)

func TestTailRecentNewestFirst(t *testing.T) {
	tail := NewTail(10)
	for i := 0; i < 5; i++ {
		tail.Add(workflow.Invocation{ID: fmt.Sprintf("inv-%d", i)})
	}
	recent := tail.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("got %d records", len(recent))
	}
	if recent[0].ID != "inv-4" || recent[1].ID != "inv-3" || recent[2].ID != "inv-2" {
		t.Fatalf("order: %s %s %s", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestTailEvictsOldest(t *testing.T) {
	tail := NewTail(2)
	tail.Add(workflow.Invocation{ID: "a"})
	tail.Add(workflow.Invocation{ID: "b"})
	tail.Add(workflow.Invocation{ID: "c"})
	if tail.Len() != 2 {
		t.Fatalf("len: %d", tail.Len())
	}
	recent := tail.Recent(0)
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("recent: %+v", recent)
	}
}

func TestTailDefaultCapacity(t *testing.T) {
	tail := NewTail(0)
	for i := 0; i < DefaultTailSize+10; i++ {
		tail.Add(workflow.Invocation{ID: fmt.Sprintf("inv-%d", i)})
	}
	if tail.Len() != DefaultTailSize {
		t.Fatalf("len: %d", tail.Len())
	}
}

package engine

import (
	"fmt"
	"testing"
)

func TestDecisionLogEvictsOldestFirst(t *testing.T) {
	log := newDecisionLog(3)
	for i := 1; i <= 5; i++ {
		log.add(Decision{Reason: fmt.Sprintf("r%d", i)})
	}

	got := log.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 retained decisions, got %d", len(got))
	}
	for i, want := range []string{"r3", "r4", "r5"} {
		if got[i].Reason != want {
			t.Fatalf("expected %q at index %d, got %q", want, i, got[i].Reason)
		}
	}
}

func TestDecisionLogDefaultCapacity(t *testing.T) {
	log := newDecisionLog(0)
	if log.capacity != defaultDecisionHistoryLimit {
		t.Fatalf("expected default capacity %d, got %d", defaultDecisionHistoryLimit, log.capacity)
	}
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(got))
	}
}

func TestDecisionLogPartialFill(t *testing.T) {
	log := newDecisionLog(8)
	log.add(Decision{Reason: "first"})
	log.add(Decision{Reason: "second"})

	got := log.snapshot()
	if len(got) != 2 || got[0].Reason != "first" || got[1].Reason != "second" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

package coordinator

import (
	"testing"

	"github.com/phytolab/sage/internal/logging"
)

func TestEmitterIgnoresEmitAfterClose(t *testing.T) {
	e := newEmitter(4, logging.Nop())
	e.emit(Event{Type: EventTaskSubmitted, TaskID: "t1"})
	e.close()

	// A task goroutine that outlives the shutdown grace period may still
	// report outcomes; those land after close and must be discarded.
	e.emit(Event{Type: EventStepCompleted, TaskID: "t1"})
	e.close()

	var got []Event
	for event := range e.events {
		got = append(got, event)
	}
	if len(got) != 1 || got[0].Type != EventTaskSubmitted {
		t.Fatalf("events after close = %+v, want the single pre-close event", got)
	}
	if e.dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", e.dropped())
	}
}

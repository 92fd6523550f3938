package coordinator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/pkg/models"
)

// EventType classifies coordinator lifecycle events.
type EventType string

const (
	// EventTaskSubmitted is emitted when a task enters the queue.
	EventTaskSubmitted EventType = "task_submitted"
	// EventTaskStarted is emitted when a task begins executing.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted is emitted when a task completes with a result.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed is emitted when a required step aborts a task.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled is emitted when a queued task is cancelled.
	EventTaskCancelled EventType = "task_cancelled"
	// EventStepStarted is emitted when a workflow step launches.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted is emitted when a step produces an output.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed is emitted when a required step fails terminally.
	EventStepFailed EventType = "step_failed"
	// EventStepSkipped is emitted when an optional step fails and the
	// workflow continues without its output.
	EventStepSkipped EventType = "step_skipped"
)

// Event is one coordinator lifecycle event.
type Event struct {
	// Type classifies the event.
	Type EventType
	// TaskID is the task this event belongs to.
	TaskID string
	// StepID is set for step-level events.
	StepID string
	// WorkerType is set for step-level events.
	WorkerType models.WorkerType
	// Message is a human-readable description.
	Message string
	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// emitter fans coordinator events out to a buffered channel. A full
// channel drops events rather than blocking the scheduling loop. Task
// goroutines may outlive the shutdown grace period, so emit and close
// synchronize on the mutex and a late emit is a no-op.
type emitter struct {
	mu           sync.Mutex
	closed       bool
	events       chan Event
	droppedCount atomic.Uint64
	logger       logging.Logger
}

func newEmitter(bufferSize int, logger logging.Logger) *emitter {
	return &emitter{
		events: make(chan Event, bufferSize),
		logger: logging.OrNop(logger),
	}
}

func (e *emitter) emit(event Event) {
	event.Timestamp = time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- event:
	default:
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			e.logger.Warn("event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

func (e *emitter) dropped() uint64 {
	return e.droppedCount.Load()
}

func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}

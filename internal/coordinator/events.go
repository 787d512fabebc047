package coordinator

import (
	"context"
	"sync/atomic"
	"time"
)

// EventType represents the type of coordinator event.
type EventType string

const (
	// EventRequestAccepted indicates a request was registered.
	EventRequestAccepted EventType = "request_accepted"
	// EventRequestRejected indicates a request failed version validation.
	EventRequestRejected EventType = "request_rejected"
	// EventRequestDrained indicates the last task of a request completed.
	EventRequestDrained EventType = "request_drained"
	// EventTaskQueued indicates a task was registered and handed to the spawner.
	EventTaskQueued EventType = "task_queued"
	// EventTaskCompleted indicates a task reported success.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task reported failure.
	EventTaskFailed EventType = "task_failed"
	// EventUnknownCompletion indicates a completion arrived for an id that is not tracked.
	EventUnknownCompletion EventType = "unknown_completion"
	// EventBusy indicates the bridge went from idle to busy.
	EventBusy EventType = "busy"
	// EventIdle indicates the bridge went from busy to idle.
	EventIdle EventType = "idle"
	// EventReset indicates the queues were cleared by an operator.
	EventReset EventType = "reset"
)

// Event is emitted by the coordinator for progress displays and subscribers.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Command   string    `json:"command,omitempty"`
	PrimPath  string    `json:"prim_path,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventEmitter hands events to a single consumer through a buffered channel.
// Emit never blocks: the coordinator emits while holding its lock, so a full
// buffer drops the event and counts it.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, dropping it when the buffer is full.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- event:
	default:
		e.droppedCount.Add(1)
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// ForwardEvents hands every event to fn until ctx is done. It is meant to run
// on its own goroutine and is the stream's only consumer.
func (c *Coordinator) ForwardEvents(ctx context.Context, fn func(Event)) {
	events := c.emitter.Events()
	for {
		select {
		case event := <-events:
			fn(event)
		case <-ctx.Done():
			return
		}
	}
}

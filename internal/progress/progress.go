// Package progress defines the Scheduler's progress event stream (spec.md
// §4.6) and its observers: an in-process channel (the core contract) and an
// optional Redis pub/sub publisher for external dashboards (SPEC_FULL §2).
package progress

import "time"

// Phase is one step in a device job's totally-ordered progress sequence
// (spec.md §4.6, "Ordering"): scheduled -> started -> (connected|failed) ->
// commands-ok -> written -> done|failed|canceled.
type Phase string

const (
	PhaseScheduled  Phase = "scheduled"
	PhaseStarted    Phase = "started"
	PhaseConnected  Phase = "connected"
	PhaseCommandsOK Phase = "commands-ok"
	PhaseWritten    Phase = "written"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
	PhaseCanceled   Phase = "canceled"
)

// Event is one progress notification for one device job.
type Event struct {
	BatchID string
	Host    string
	Phase   Phase
	Elapsed time.Duration
	Outcome string
	Time    time.Time
}

// Observer receives progress events. Implementations must not block the
// scheduler for long; Notify is called synchronously from the worker
// emitting the event.
type Observer interface {
	Notify(Event)
}

// ChannelObserver forwards events onto a buffered channel, the default
// observer wired into the CLI's `batch` command for console progress
// output. Events are dropped (not blocked on) once the buffer is full,
// since progress reporting must never suspend a worker.
type ChannelObserver struct {
	events chan Event
}

// NewChannelObserver returns an Observer backed by a channel of the given
// buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{events: make(chan Event, buffer)}
}

// Notify implements Observer.
func (o *ChannelObserver) Notify(e Event) {
	select {
	case o.events <- e:
	default:
	}
}

// Events returns the receive side of the channel.
func (o *ChannelObserver) Events() <-chan Event {
	return o.events
}

// Close closes the channel; safe to call once all producers have stopped.
func (o *ChannelObserver) Close() {
	close(o.events)
}

// MultiObserver fans a single Notify out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver composes observers into one.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// Notify implements Observer.
func (m *MultiObserver) Notify(e Event) {
	for _, o := range m.observers {
		o.Notify(e)
	}
}

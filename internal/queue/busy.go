// Package queue holds the bookkeeping for outstanding requests and tasks and
// the busy/idle signal derived from them.
//
// Nothing in this package locks. The coordinator that owns these values
// serializes every access.
package queue

// Emptier is implemented by registries consulted before going idle.
type Emptier interface {
	IsEmpty() bool
}

// BusySignal is a two-state Idle/Busy flag that notifies observers once per edge.
type BusySignal struct {
	// busy is the current state.
	busy bool
	// observers are called synchronously, in registration order, on every edge.
	observers []func(busy bool)
	// transitions counts the edges fired so far.
	transitions uint64
}

// NewBusySignal creates a signal in the Idle state.
func NewBusySignal() *BusySignal {
	return &BusySignal{}
}

// Observe registers fn to be called with the new state on every Idle<->Busy edge.
func (b *BusySignal) Observe(fn func(busy bool)) {
	b.observers = append(b.observers, fn)
}

// IsBusy reports the current state.
func (b *BusySignal) IsBusy() bool {
	return b.busy
}

// Transitions returns how many edges have fired.
func (b *BusySignal) Transitions() uint64 {
	return b.transitions
}

// MarkBusyIfNeeded moves Idle to Busy. It is a no-op when already busy.
func (b *BusySignal) MarkBusyIfNeeded() bool {
	if b.busy {
		return false
	}
	b.set(true)
	return true
}

// MarkIdleIfEmpty moves Busy to Idle when every registry is empty.
// It reports whether an edge fired.
func (b *BusySignal) MarkIdleIfEmpty(registries ...Emptier) bool {
	if !b.busy {
		return false
	}
	for _, r := range registries {
		if !r.IsEmpty() {
			return false
		}
	}
	b.set(false)
	return true
}

func (b *BusySignal) set(busy bool) {
	b.busy = busy
	b.transitions++
	for _, fn := range b.observers {
		fn(busy)
	}
}

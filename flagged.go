package foreman

import (
	"fmt"
	"sync/atomic"
)

var _ Backend[int] = &Flagged[int]{}

// EventKind classifies a component change.
type EventKind uint8

const (
	Inserted EventKind = iota
	Modified
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// ComponentEvent records one change to a tracked storage.
type ComponentEvent struct {
	Index uint32
	Kind  EventKind
}

// Flagged wraps a backend and logs every insert, mutable access and removal.
// There is no equality check: handing out a mutable pointer is a
// modification.
type Flagged[T any] struct {
	inner  Backend[T]
	events *Channel[ComponentEvent]
	silent atomic.Bool
}

func newFlagged[T any](inner Backend[T]) *Flagged[T] {
	return &Flagged[T]{inner: inner, events: newChannel[ComponentEvent]()}
}

// Channel returns the storage's change log.
func (f *Flagged[T]) Channel() *Channel[ComponentEvent] {
	return f.events
}

// SetEmitting turns event emission on or off. Mutations made while off still
// happen but leave no trace in the log.
func (f *Flagged[T]) SetEmitting(on bool) {
	f.silent.Store(!on)
}

// Emitting reports whether mutations are being logged.
func (f *Flagged[T]) Emitting() bool {
	return !f.silent.Load()
}

func (f *Flagged[T]) emit(index uint32, kind EventKind) {
	if f.silent.Load() {
		return
	}
	f.events.Write(ComponentEvent{Index: index, Kind: kind})
}

func (f *Flagged[T]) Get(index uint32) *T {
	return f.inner.Get(index)
}

func (f *Flagged[T]) GetMut(index uint32) *T {
	f.emit(index, Modified)
	return f.inner.GetMut(index)
}

func (f *Flagged[T]) Insert(index uint32, value T) {
	f.emit(index, Inserted)
	f.inner.Insert(index, value)
}

func (f *Flagged[T]) Remove(index uint32) T {
	f.emit(index, Removed)
	return f.inner.Remove(index)
}

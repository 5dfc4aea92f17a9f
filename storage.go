package foreman

import (
	"github.com/willf/bitset"
)

var _ anyStorage = &Storage[struct{}]{}

// Storage maps live entity indices to T values. Presence is tracked in a
// bitset so joins can intersect storages without touching the backend.
type Storage[T any] struct {
	id       Identity
	present  bitset.BitSet
	count    int
	backend  Backend[T]
	entities *Entities
}

func newStorage[T any](entities *Entities, backend Backend[T]) *Storage[T] {
	return &Storage[T]{
		id:       StorageID[T](),
		backend:  backend,
		entities: entities,
	}
}

func (sto *Storage[T]) Identity() Identity {
	return sto.id
}

// Backend exposes the layout the storage was registered with.
func (sto *Storage[T]) Backend() Backend[T] {
	return sto.backend
}

// Len returns the number of stored components.
func (sto *Storage[T]) Len() int {
	return sto.count
}

// Contains reports whether e is alive and holds a T.
func (sto *Storage[T]) Contains(e Entity) bool {
	return sto.present.Test(uint(e.index)) && sto.entities.IsAlive(e)
}

// Get returns a copy of e's component. Stale handles read as absent.
func (sto *Storage[T]) Get(e Entity) (T, bool) {
	if !sto.Contains(e) {
		var zero T
		return zero, false
	}
	return *sto.backend.Get(e.index), true
}

// GetMut returns a pointer to e's component. On change-tracked backends this
// counts as a modification whether or not the value is then changed.
func (sto *Storage[T]) GetMut(e Entity) (*T, bool) {
	if !sto.Contains(e) {
		return nil, false
	}
	return sto.backend.GetMut(e.index), true
}

// Insert stores value for e and returns the value it replaced, if any.
func (sto *Storage[T]) Insert(e Entity, value T) (T, bool, error) {
	var prev T
	if !sto.entities.IsAlive(e) {
		return prev, false, StaleEntityError{Entity: e}
	}
	if sto.present.Test(uint(e.index)) {
		slot := sto.backend.GetMut(e.index)
		prev, *slot = *slot, value
		return prev, true, nil
	}
	sto.present.Set(uint(e.index))
	sto.count++
	sto.backend.Insert(e.index, value)
	return prev, false, nil
}

// Remove deletes e's component and returns it.
func (sto *Storage[T]) Remove(e Entity) (T, bool) {
	if !sto.Contains(e) {
		var zero T
		return zero, false
	}
	return sto.removeIndex(e.index), true
}

func (sto *Storage[T]) removeIndex(index uint32) T {
	sto.present.Clear(uint(index))
	sto.count--
	return sto.backend.Remove(index)
}

// retire drops entries of entities retired at the maintenance barrier.
func (sto *Storage[T]) retire(indices []uint32) {
	for _, index := range indices {
		if sto.present.Test(uint(index)) {
			sto.removeIndex(index)
		}
	}
}

// ReadStorage is a read-token view of a storage.
type ReadStorage[T any] struct {
	sto *Storage[T]
}

func (r ReadStorage[T]) Get(e Entity) (T, bool) { return r.sto.Get(e) }

func (r ReadStorage[T]) Contains(e Entity) bool { return r.sto.Contains(e) }

func (r ReadStorage[T]) Len() int { return r.sto.Len() }

// View joins over entities holding a T.
func (r ReadStorage[T]) View() ReadView[T] {
	return ReadView[T]{sto: r.sto}
}

// Maybe joins without requiring a T.
func (r ReadStorage[T]) Maybe() MaybeView[T] {
	return MaybeView[T]{sto: r.sto}
}

// Not joins over entities lacking a T.
func (r ReadStorage[T]) Not() NotView {
	return NotView{mask: &r.sto.present, entities: r.sto.entities}
}

// Events returns the change log of a flagged storage.
func (r ReadStorage[T]) Events() (*Channel[ComponentEvent], error) {
	flagged, ok := r.sto.backend.(*Flagged[T])
	if !ok {
		return nil, NotTrackedError{ID: r.sto.id}
	}
	return flagged.Channel(), nil
}

// WriteStorage is a write-token view of a storage.
type WriteStorage[T any] struct {
	ReadStorage[T]
}

func (w WriteStorage[T]) GetMut(e Entity) (*T, bool) { return w.sto.GetMut(e) }

func (w WriteStorage[T]) Insert(e Entity, value T) (T, bool, error) { return w.sto.Insert(e, value) }

func (w WriteStorage[T]) Remove(e Entity) (T, bool) { return w.sto.Remove(e) }

// Mut joins over entities holding a T and hands out pointers to them.
func (w WriteStorage[T]) Mut() WriteView[T] {
	return WriteView[T]{sto: w.sto}
}

// MaybeMut is the optional form of Mut.
func (w WriteStorage[T]) MaybeMut() MaybeMutView[T] {
	return MaybeMutView[T]{sto: w.sto}
}

// SetEmitting switches change events of a flagged storage on or off.
func (w WriteStorage[T]) SetEmitting(on bool) error {
	flagged, ok := w.sto.backend.(*Flagged[T])
	if !ok {
		return NotTrackedError{ID: w.sto.id}
	}
	flagged.SetEmitting(on)
	return nil
}

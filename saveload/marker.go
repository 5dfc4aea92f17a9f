package saveload

import (
	"github.com/TheBitDrifter/foreman"
)

// Marker is the stable identity of an entity across save and load. K is a
// phantom kind: each kind has its own storage, allocator and id space.
type Marker[K any] struct {
	ID uint64
}

// Allocator hands out marker ids and keeps the reverse id to entity map. It
// lives in the world as a resource; the zero value is ready to use.
type Allocator[K any] struct {
	last  uint64
	index map[uint64]foreman.Entity
}

func (a *Allocator[K]) track(id uint64, e foreman.Entity) {
	if a.index == nil {
		a.index = make(map[uint64]foreman.Entity)
	}
	a.index[id] = e
	a.last = max(a.last, id)
}

// Allocate marks e with a fresh id, or returns the marker it already has.
func (a *Allocator[K]) Allocate(e foreman.Entity, markers foreman.WriteStorage[Marker[K]]) (Marker[K], error) {
	if m, ok := markers.Get(e); ok {
		return m, nil
	}
	m := Marker[K]{ID: a.last + 1}
	if _, _, err := markers.Insert(e, m); err != nil {
		return Marker[K]{}, err
	}
	a.track(m.ID, e)
	return m, nil
}

// Claim marks e with a known id, as when restoring a save.
func (a *Allocator[K]) Claim(id uint64, e foreman.Entity, markers foreman.WriteStorage[Marker[K]]) (Marker[K], error) {
	m := Marker[K]{ID: id}
	if _, _, err := markers.Insert(e, m); err != nil {
		return Marker[K]{}, err
	}
	a.track(id, e)
	return m, nil
}

// Lookup returns the entity last known to carry id. The handle may be stale.
func (a *Allocator[K]) Lookup(id uint64) (foreman.Entity, bool) {
	e, ok := a.index[id]
	return e, ok
}

// Len returns the number of tracked ids.
func (a *Allocator[K]) Len() int {
	return len(a.index)
}

// Resync rebuilds the reverse map from the marker storage, dropping ids of
// entities that no longer exist. Ids are never handed out twice, even after
// the entities carrying them are gone.
func (a *Allocator[K]) Resync(entities *foreman.Entities, markers foreman.ReadStorage[Marker[K]]) {
	clear(a.index)
	view := markers.View()
	for i := range foreman.Join(entities, view).All() {
		a.track(view.At(i).ID, entities.At(i))
	}
}

// Mark marks e within a unit that declared write access to the Marker[K]
// storage and the Allocator[K] resource.
func Mark[K any](s *foreman.Scope, e foreman.Entity) (Marker[K], error) {
	markers, err := foreman.WriteComponents[Marker[K]](s)
	if err != nil {
		return Marker[K]{}, err
	}
	alloc, err := foreman.WriteResource[Allocator[K]](s)
	if err != nil {
		return Marker[K]{}, err
	}
	return alloc.Allocate(e, markers)
}

// Accesses is the descriptor a unit calling Mark needs.
func Accesses[K any]() foreman.Descriptor {
	return foreman.Descriptor{
		foreman.Writes[Marker[K]](),
		foreman.WritesResource[Allocator[K]](),
	}
}

package foreman

import (
	"fmt"
	"sync"
)

// World owns every storage, resource and entity of a simulation. It is
// passed explicitly to setup, dispatch and maintenance; there is no global
// world.
type World struct {
	mu        sync.RWMutex
	storages  map[Identity]anyStorage
	order     []anyStorage
	resources map[Identity]any
	entities  *Entities
	lazy      *LazyUpdates
	ledger    ledger
}

func newWorld() *World {
	return &World{
		storages:  make(map[Identity]anyStorage),
		resources: make(map[Identity]any),
		entities:  newEntities(),
		lazy:      &LazyUpdates{},
	}
}

func (w *World) storage(id Identity) (anyStorage, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sto, ok := w.storages[id]
	return sto, ok
}

func (w *World) resource(id Identity) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res, ok := w.resources[id]
	return res, ok
}

// Entities returns the entity registry.
func (w *World) Entities() *Entities {
	return w.entities
}

// Create makes a new entity.
func (w *World) Create() Entity {
	return w.entities.Create()
}

// Delete queues e for removal at the next Maintain.
func (w *World) Delete(e Entity) error {
	return w.entities.Delete(e)
}

// IsAlive reports whether e is alive.
func (w *World) IsAlive(e Entity) bool {
	return w.entities.IsAlive(e)
}

// Register adds a storage for T unless one exists. A T implementing
// BackendProvider picks its backend; otherwise the storage is Paged.
func Register[T any](w *World) {
	var zero T
	if provider, ok := any(zero).(BackendProvider[T]); ok {
		RegisterWith(w, provider.NewBackend())
		return
	}
	RegisterWith[T](w, &Paged[T]{})
}

// RegisterWith adds a storage for T over backend unless one exists, and
// reports whether it did.
func RegisterWith[T any](w *World, backend Backend[T]) bool {
	id := StorageID[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.storages[id]; ok {
		return false
	}
	sto := newStorage(w.entities, backend)
	w.storages[id] = sto
	w.order = append(w.order, sto)
	return true
}

// InsertResource inserts or replaces the T resource.
func InsertResource[T any](w *World, value T) {
	res := new(T)
	*res = value
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resources[ResourceID[T]()] = res
}

// Resource returns the T resource or a MissingResourceError.
func Resource[T any](w *World) (*T, error) {
	id := ResourceID[T]()
	res, ok := w.resource(id)
	if !ok {
		return nil, MissingResourceError{ID: id}
	}
	return res.(*T), nil
}

// ResourceOrDefault returns the T resource, inserting a zero T first if
// there is none.
func ResourceOrDefault[T any](w *World) *T {
	id := ResourceID[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	if res, ok := w.resources[id]; ok {
		return res.(*T)
	}
	res := new(T)
	w.resources[id] = res
	return res
}

// HasResource reports whether a T resource is present.
func HasResource[T any](w *World) bool {
	_, ok := w.resource(ResourceID[T]())
	return ok
}

// RemoveResource deletes the T resource and reports whether one existed.
func RemoveResource[T any](w *World) bool {
	id := ResourceID[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.resources[id]
	delete(w.resources, id)
	return ok
}

// Exec runs fn in an unrestricted scope. Tokens fn acquires are released
// when it returns or panics.
func (w *World) Exec(fn func(s *Scope) error) error {
	s := newScope(w, "exec", nil, nil)
	defer s.release()
	return fn(s)
}

// Insert stores value for e outside of a cycle.
func Insert[T any](w *World, e Entity, value T) error {
	return w.Exec(func(s *Scope) error {
		sto, err := WriteComponents[T](s)
		if err != nil {
			return err
		}
		_, _, err = sto.Insert(e, value)
		return err
	})
}

// Get reads e's T outside of a cycle.
func Get[T any](w *World, e Entity) (T, bool) {
	var (
		value T
		found bool
	)
	w.Exec(func(s *Scope) error {
		sto, err := ReadComponents[T](s)
		if err != nil {
			return err
		}
		value, found = sto.Get(e)
		return nil
	})
	return value, found
}

// Maintain is the mutation barrier: it applies deferred operations, then
// retires deleted entities from every storage and frees their indices. It
// must not run while any unit holds a token. Entities are retired even when
// some deferred operations fail; those failures are returned afterwards.
func (w *World) Maintain() error {
	if id, mode, busy := w.ledger.busy(); busy {
		return AccessConflictError{ID: id, Held: mode, Requested: Write, Unit: "maintain"}
	}
	err := w.lazy.apply(w)
	if err != nil {
		err = fmt.Errorf("failed to apply deferred operations: %w", err)
	}
	if retired := w.entities.maintain(); len(retired) > 0 {
		w.mu.RLock()
		for _, sto := range w.order {
			sto.retire(retired)
		}
		w.mu.RUnlock()
	}
	return err
}

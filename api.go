package foreman

import "github.com/willf/bitset"

// System is a unit of logic run once per cycle.
type System interface {
	// Access declares every storage and resource the unit touches.
	// It is read once, when the dispatcher is built.
	Access() Descriptor
	Run(s *Scope) error
}

// Setuper is implemented by units that need world state prepared before the
// first cycle, such as change-log readers.
type Setuper interface {
	Setup(w *World) error
}

// Backend is the layout a Storage keeps its values in. Callers guarantee
// presence for Get, GetMut and Remove, and absence for Insert.
type Backend[T any] interface {
	Get(index uint32) *T
	GetMut(index uint32) *T
	Insert(index uint32, value T)
	Remove(index uint32) T
}

// BackendProvider lets a component type choose its own backend for default
// registration.
type BackendProvider[T any] interface {
	NewBackend() Backend[T]
}

// View is one participant of a join.
type View interface {
	joinRole() role
	joinMask() *bitset.BitSet
	joinEntities() *Entities
}

type role uint8

const (
	roleRequired role = iota
	roleOptional
	roleNegated
)

// anyStorage is the type-erased face of a Storage the world needs for
// maintenance.
type anyStorage interface {
	Identity() Identity
	Len() int
	retire(indices []uint32)
}

// SystemFunc adapts a function and a descriptor into a System.
type SystemFunc struct {
	Accesses Descriptor
	Fn       func(s *Scope) error
}

func (f SystemFunc) Access() Descriptor { return f.Accesses }

func (f SystemFunc) Run(s *Scope) error { return f.Fn(s) }

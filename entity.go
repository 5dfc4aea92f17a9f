package foreman

import "fmt"

// Entity is a generational handle to one simulated object.
// The zero Entity is never issued and is never alive.
type Entity struct {
	index      uint32
	generation uint32
}

// Index returns the slot the entity occupies in every storage.
// Indices are recycled after the maintenance barrier.
func (e Entity) Index() uint32 {
	return e.index
}

// Generation returns the reuse counter of the entity's index.
func (e Entity) Generation() uint32 {
	return e.generation
}

// Valid reports whether the handle was ever issued by a registry.
func (e Entity) Valid() bool {
	return e.generation != 0
}

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d:%d)", e.index, e.generation)
}

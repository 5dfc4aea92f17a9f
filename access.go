package foreman

import (
	"github.com/TheBitDrifter/mask"
)

// Mode is the kind of access a unit declares on an identity.
type Mode uint8

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Access is one entry of an access descriptor.
type Access struct {
	ID   Identity
	Mode Mode

	// prepare runs during setup: it registers defaults or checks that
	// strictly required resources exist.
	prepare func(*World) error
}

// Descriptor is the ordered list of identities a unit touches per cycle.
type Descriptor []Access

// Reads declares shared access to the T storage.
func Reads[T any]() Access {
	return Access{ID: StorageID[T](), Mode: Read, prepare: registerDefault[T]}
}

// Writes declares exclusive access to the T storage.
func Writes[T any]() Access {
	return Access{ID: StorageID[T](), Mode: Write, prepare: registerDefault[T]}
}

// ReadsResource declares shared access to the T resource. Setup inserts a
// zero T when none exists.
func ReadsResource[T any]() Access {
	return Access{ID: ResourceID[T](), Mode: Read, prepare: insertDefault[T]}
}

// WritesResource declares exclusive access to the T resource. Setup inserts a
// zero T when none exists.
func WritesResource[T any]() Access {
	return Access{ID: ResourceID[T](), Mode: Write, prepare: insertDefault[T]}
}

// ExpectsResource declares shared access to a T resource the embedder must
// insert before setup.
func ExpectsResource[T any]() Access {
	return Access{ID: ResourceID[T](), Mode: Read, prepare: requireResource[T]}
}

// ExpectsResourceMut is the exclusive form of ExpectsResource.
func ExpectsResourceMut[T any]() Access {
	return Access{ID: ResourceID[T](), Mode: Write, prepare: requireResource[T]}
}

// ReadsEntities declares access to the entity registry. Creating and
// deleting entities only needs read access.
func ReadsEntities() Access {
	return Access{ID: ResourceID[Entities](), Mode: Read}
}

func registerDefault[T any](w *World) error {
	Register[T](w)
	return nil
}

func insertDefault[T any](w *World) error {
	ResourceOrDefault[T](w)
	return nil
}

func requireResource[T any](w *World) error {
	if !HasResource[T](w) {
		return MissingResourceError{ID: ResourceID[T]()}
	}
	return nil
}

// modes folds the descriptor into one mode per identity, write winning.
func (d Descriptor) modes() map[Identity]Mode {
	modes := make(map[Identity]Mode, len(d))
	for _, a := range d {
		if a.Mode == Write || modes[a.ID] != Write {
			modes[a.ID] = a.Mode
		}
	}
	return modes
}

// accessMask is a descriptor compiled against an identity schema.
type accessMask struct {
	reads  mask.Mask
	writes mask.Mask
}

func compileMask(schema identitySchema, d Descriptor) (accessMask, error) {
	var m accessMask
	for id, mode := range d.modes() {
		bit, err := schema.bit(id)
		if err != nil {
			return accessMask{}, err
		}
		if mode == Write {
			m.writes.Mark(bit)
		} else {
			m.reads.Mark(bit)
		}
	}
	return m, nil
}

// conflicts reports whether a and b share an identity that at least one of
// them writes.
func (a accessMask) conflicts(b accessMask) bool {
	return a.writes.ContainsAny(b.writes) ||
		a.writes.ContainsAny(b.reads) ||
		b.writes.ContainsAny(a.reads)
}

// conflictingIdentity names the first identity two descriptors fight over.
func conflictingIdentity(a, b Descriptor) (Identity, bool) {
	am, bm := a.modes(), b.modes()
	for _, acc := range a {
		other, ok := bm[acc.ID]
		if !ok {
			continue
		}
		if am[acc.ID] == Write || other == Write {
			return acc.ID, true
		}
	}
	return Identity{}, false
}

package foreman

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

// MaxIdentities bounds how many distinct storages and resources one
// dispatcher can reason about. It follows the mask width, which the m256,
// m512 and m1024 build tags raise from the default of 64.
const MaxIdentities = mask.MaxBits

// IdentityKind separates storages from resources of the same Go type.
type IdentityKind uint8

const (
	KindStorage IdentityKind = iota
	KindResource
)

// Identity names one storage or resource in a world.
type Identity struct {
	kind IdentityKind
	typ  reflect.Type
}

type storageOf[T any] struct{}

type resourceOf[T any] struct{}

// elements hands out one table element type per identity so a table schema
// can assign it a stable bit.
var elements = struct {
	sync.Mutex
	byIdentity map[Identity]table.ElementType
}{byIdentity: make(map[Identity]table.ElementType)}

// StorageID returns the identity of the storage holding T components.
func StorageID[T any]() Identity {
	id := Identity{kind: KindStorage, typ: reflect.TypeFor[T]()}
	registerElement(id, func() table.ElementType {
		return table.FactoryNewElementType[storageOf[T]]()
	})
	return id
}

// ResourceID returns the identity of the T resource.
func ResourceID[T any]() Identity {
	id := Identity{kind: KindResource, typ: reflect.TypeFor[T]()}
	registerElement(id, func() table.ElementType {
		return table.FactoryNewElementType[resourceOf[T]]()
	})
	return id
}

func registerElement(id Identity, create func() table.ElementType) {
	elements.Lock()
	defer elements.Unlock()
	if _, ok := elements.byIdentity[id]; !ok {
		elements.byIdentity[id] = create()
	}
}

func (id Identity) element() table.ElementType {
	elements.Lock()
	defer elements.Unlock()
	return elements.byIdentity[id]
}

// Kind reports whether the identity is a storage or a resource.
func (id Identity) Kind() IdentityKind {
	return id.kind
}

// Type returns the component or resource type.
func (id Identity) Type() reflect.Type {
	return id.typ
}

func (id Identity) String() string {
	if id.typ == nil {
		return "<none>"
	}
	switch id.kind {
	case KindStorage:
		return fmt.Sprintf("storage(%s)", id.typ)
	default:
		return fmt.Sprintf("resource(%s)", id.typ)
	}
}

// identitySchema maps identities to mask bits through a table schema, the
// same way archetype masks are built from component row indices.
type identitySchema struct {
	schema table.Schema
}

func newIdentitySchema() identitySchema {
	return identitySchema{schema: table.Factory.NewSchema()}
}

func (s identitySchema) bit(id Identity) (uint32, error) {
	elem := id.element()
	s.schema.Register(elem)
	bit := s.schema.RowIndexFor(elem)
	if bit >= MaxIdentities {
		return 0, TooManyIdentitiesError{Identity: id}
	}
	return bit, nil
}

package foreman

import "github.com/willf/bitset"

var (
	_ View = ReadView[int]{}
	_ View = WriteView[int]{}
	_ View = MaybeView[int]{}
	_ View = MaybeMutView[int]{}
	_ View = NotView{}
	_ View = SetView{}
)

// ReadView requires the component and reads it at the join position.
type ReadView[T any] struct {
	sto *Storage[T]
}

// At returns the component of the entity at index. The index must come from
// a join this view took part in.
func (v ReadView[T]) At(index uint32) T {
	return *v.sto.backend.Get(index)
}

// Ptr is At without the copy. The value must not be written through it.
func (v ReadView[T]) Ptr(index uint32) *T {
	return v.sto.backend.Get(index)
}

func (v ReadView[T]) joinRole() role           { return roleRequired }
func (v ReadView[T]) joinMask() *bitset.BitSet { return &v.sto.present }
func (v ReadView[T]) joinEntities() *Entities  { return v.sto.entities }

// WriteView requires the component and hands out pointers to it. On a
// flagged storage every At emits Modified.
type WriteView[T any] struct {
	sto *Storage[T]
}

func (v WriteView[T]) At(index uint32) *T {
	return v.sto.backend.GetMut(index)
}

func (v WriteView[T]) joinRole() role           { return roleRequired }
func (v WriteView[T]) joinMask() *bitset.BitSet { return &v.sto.present }
func (v WriteView[T]) joinEntities() *Entities  { return v.sto.entities }

// MaybeView reads the component when present without narrowing the join.
type MaybeView[T any] struct {
	sto *Storage[T]
}

func (v MaybeView[T]) At(index uint32) (T, bool) {
	if !v.sto.present.Test(uint(index)) {
		var zero T
		return zero, false
	}
	return *v.sto.backend.Get(index), true
}

func (v MaybeView[T]) joinRole() role           { return roleOptional }
func (v MaybeView[T]) joinMask() *bitset.BitSet { return &v.sto.present }
func (v MaybeView[T]) joinEntities() *Entities  { return v.sto.entities }

// MaybeMutView is the mutable form of MaybeView. Only present components are
// reported as modified.
type MaybeMutView[T any] struct {
	sto *Storage[T]
}

func (v MaybeMutView[T]) At(index uint32) (*T, bool) {
	if !v.sto.present.Test(uint(index)) {
		return nil, false
	}
	return v.sto.backend.GetMut(index), true
}

func (v MaybeMutView[T]) joinRole() role           { return roleOptional }
func (v MaybeMutView[T]) joinMask() *bitset.BitSet { return &v.sto.present }
func (v MaybeMutView[T]) joinEntities() *Entities  { return v.sto.entities }

// NotView narrows a join to entities missing the component.
type NotView struct {
	mask     *bitset.BitSet
	entities *Entities
}

func (v NotView) joinRole() role           { return roleNegated }
func (v NotView) joinMask() *bitset.BitSet { return v.mask }
func (v NotView) joinEntities() *Entities  { return v.entities }

// SetView joins against an arbitrary entity index set. Useful for bounding
// joins made only of optional and negated views.
type SetView struct {
	set *bitset.BitSet
}

// Set wraps set as a required join view.
func Set(set *bitset.BitSet) SetView {
	return SetView{set: set}
}

func (v SetView) joinRole() role           { return roleRequired }
func (v SetView) joinMask() *bitset.BitSet { return v.set }
func (v SetView) joinEntities() *Entities  { return nil }

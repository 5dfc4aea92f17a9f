package foreman

var (
	_ Backend[int] = &Vec[int]{}
	_ Backend[int] = &Paged[int]{}
	_ Backend[int] = &Null[int]{}
)

// Vec keeps values in a slice indexed directly by entity index. Best when
// nearly every entity holds the component.
type Vec[T any] struct {
	data []T
}

func (v *Vec[T]) Get(index uint32) *T { return &v.data[index] }

func (v *Vec[T]) GetMut(index uint32) *T { return &v.data[index] }

func (v *Vec[T]) Insert(index uint32, value T) {
	if int(index) >= len(v.data) {
		needed := int(index) + 1
		if cap(v.data) < needed {
			grown := make([]T, needed, max(needed, 2*cap(v.data)))
			copy(grown, v.data)
			v.data = grown
		}
		v.data = v.data[:needed]
	}
	v.data[index] = value
}

func (v *Vec[T]) Remove(index uint32) T {
	var zero T
	value := v.data[index]
	v.data[index] = zero
	return value
}

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

// Paged is a sparse set: a lazily allocated page table maps entity indices
// to slots of a packed array, so rare components cost memory proportional to
// how many entities hold them.
type Paged[T any] struct {
	pages  [][]int32
	dense  []T
	owners []uint32
}

func (p *Paged[T]) slot(index uint32) int32 {
	return p.pages[index>>pageShift][index&pageMask]
}

func (p *Paged[T]) Get(index uint32) *T { return &p.dense[p.slot(index)] }

func (p *Paged[T]) GetMut(index uint32) *T { return &p.dense[p.slot(index)] }

func (p *Paged[T]) Insert(index uint32, value T) {
	page := int(index >> pageShift)
	for len(p.pages) <= page {
		p.pages = append(p.pages, nil)
	}
	if p.pages[page] == nil {
		p.pages[page] = make([]int32, pageSize)
		for i := range p.pages[page] {
			p.pages[page][i] = -1
		}
	}
	p.pages[page][index&pageMask] = int32(len(p.dense))
	p.dense = append(p.dense, value)
	p.owners = append(p.owners, index)
}

// Remove swaps the last packed value into the freed slot.
func (p *Paged[T]) Remove(index uint32) T {
	slot := p.slot(index)
	last := int32(len(p.dense) - 1)
	value := p.dense[slot]

	moved := p.owners[last]
	p.dense[slot] = p.dense[last]
	p.owners[slot] = moved
	p.pages[moved>>pageShift][moved&pageMask] = slot

	var zero T
	p.dense[last] = zero
	p.dense = p.dense[:last]
	p.owners = p.owners[:last]
	p.pages[index>>pageShift][index&pageMask] = -1
	return value
}

// Len returns the number of packed values.
func (p *Paged[T]) Len() int {
	return len(p.dense)
}

// Null stores nothing. It suits zero-size marker components whose only
// information is presence; inserted values are discarded.
type Null[T any] struct {
	zero T
}

func (n *Null[T]) Get(uint32) *T { return &n.zero }

func (n *Null[T]) GetMut(uint32) *T { return &n.zero }

func (n *Null[T]) Insert(uint32, T) {}

func (n *Null[T]) Remove(uint32) T {
	var zero T
	return zero
}

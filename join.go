package foreman

import (
	"iter"

	"github.com/willf/bitset"
)

// Cursor walks the intersection of a join's views. It is lazy, forward-only
// and single-pass; Reset rewinds it for another pass.
//
// A join made only of optional and negated views has nothing to bound the
// scan and walks the whole committed live set. Add the *Entities view or a
// SetView to bound it.
type Cursor struct {
	plan    joinPlan
	next    uint
	current uint32
	active  bool
}

type joinPlan struct {
	driver   *bitset.BitSet
	required []*bitset.BitSet
	negated  []*bitset.BitSet
}

// Join builds a cursor over every entity present in all required views.
func Join(views ...View) *Cursor {
	return &Cursor{plan: planJoin(views)}
}

func planJoin(views []View) joinPlan {
	var (
		plan     joinPlan
		required []*bitset.BitSet
		entities *Entities
	)
	for _, v := range views {
		if e := v.joinEntities(); e != nil {
			entities = e
		}
		switch v.joinRole() {
		case roleRequired:
			required = append(required, v.joinMask())
		case roleNegated:
			plan.negated = append(plan.negated, v.joinMask())
		}
	}
	if len(required) == 0 {
		if entities != nil {
			plan.driver = &entities.committed
		}
		return plan
	}

	// The most selective view drives; the rest are probed.
	driver := 0
	for i := 1; i < len(required); i++ {
		if required[i].Count() < required[driver].Count() {
			driver = i
		}
	}
	plan.driver = required[driver]
	for i, set := range required {
		if i != driver {
			plan.required = append(plan.required, set)
		}
	}
	return plan
}

func (p joinPlan) matches(i uint) bool {
	for _, set := range p.required {
		if !set.Test(i) {
			return false
		}
	}
	for _, set := range p.negated {
		if set.Test(i) {
			return false
		}
	}
	return true
}

// seek returns the first match at or after from.
func (p joinPlan) seek(from uint) (uint, bool) {
	if p.driver == nil {
		return 0, false
	}
	for i, ok := p.driver.NextSet(from); ok; i, ok = p.driver.NextSet(i + 1) {
		if p.matches(i) {
			return i, true
		}
	}
	return 0, false
}

// Next advances to the next match.
func (c *Cursor) Next() bool {
	c.active = true
	i, ok := c.plan.seek(c.next)
	if !ok {
		c.Reset()
		return false
	}
	c.current = uint32(i)
	c.next = i + 1
	return true
}

// Index returns the entity index the cursor is positioned on.
func (c *Cursor) Index() uint32 {
	return c.current
}

// All yields each matching index. A cursor can serve one iteration at a time.
func (c *Cursor) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if c.active {
			panic("foreman: cursor is already iterating")
		}
		defer c.Reset()
		for c.Next() {
			if !yield(c.current) {
				return
			}
		}
	}
}

// Reset rewinds the cursor.
func (c *Cursor) Reset() {
	c.next = 0
	c.current = 0
	c.active = false
}

// TotalMatched counts matches without moving the cursor.
func (c *Cursor) TotalMatched() int {
	total := 0
	for i, ok := c.plan.seek(0); ok; i, ok = c.plan.seek(i + 1) {
		total++
	}
	return total
}

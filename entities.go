package foreman

import (
	"sync"

	"github.com/willf/bitset"
)

var _ View = &Entities{}

// Entities is the world's generational id allocator.
//
// Create and Delete are safe for concurrent use by units holding read access to
// the registry. Neither changes what joins observe: new entities join the
// committed live set, and deleted ones leave it, only at the maintenance barrier.
type Entities struct {
	mu          sync.RWMutex
	generations []uint32
	live        bitset.BitSet // issued and not yet killed, updated immediately
	committed   bitset.BitSet // live set as of the last barrier, read by joins
	raised      []uint32
	killed      []uint32
	killedSet   bitset.BitSet
	free        []uint32
}

func newEntities() *Entities {
	return &Entities{}
}

// Create reserves a fresh or recycled index and returns a handle that is
// alive immediately.
func (ents *Entities) Create() Entity {
	ents.mu.Lock()
	defer ents.mu.Unlock()

	var index uint32
	if n := len(ents.free); n > 0 {
		index = ents.free[n-1]
		ents.free = ents.free[:n-1]
	} else {
		index = uint32(len(ents.generations))
		ents.generations = append(ents.generations, 1)
	}
	ents.live.Set(uint(index))
	ents.raised = append(ents.raised, index)
	return Entity{index: index, generation: ents.generations[index]}
}

// Delete enqueues e for removal at the next barrier. Deleting a handle that is
// already queued is a no-op; deleting a dead handle returns StaleEntityError.
func (ents *Entities) Delete(e Entity) error {
	ents.mu.Lock()
	defer ents.mu.Unlock()

	if !ents.aliveLocked(e) {
		return StaleEntityError{Entity: e}
	}
	if ents.killedSet.Test(uint(e.index)) {
		return nil
	}
	ents.killedSet.Set(uint(e.index))
	ents.killed = append(ents.killed, e.index)
	return nil
}

// IsAlive reports whether e still names a live entity. Entities queued for
// deletion stay alive until the barrier.
func (ents *Entities) IsAlive(e Entity) bool {
	ents.mu.RLock()
	defer ents.mu.RUnlock()
	return ents.aliveLocked(e)
}

func (ents *Entities) aliveLocked(e Entity) bool {
	if e.generation == 0 || int(e.index) >= len(ents.generations) {
		return false
	}
	return ents.generations[e.index] == e.generation && ents.live.Test(uint(e.index))
}

// Pending reports whether e is queued for deletion.
func (ents *Entities) Pending(e Entity) bool {
	ents.mu.RLock()
	defer ents.mu.RUnlock()
	return ents.aliveLocked(e) && ents.killedSet.Test(uint(e.index))
}

// Entity returns the current handle for index. Used by joins to turn a
// visited index back into a handle.
func (ents *Entities) Entity(index uint32) Entity {
	ents.mu.RLock()
	defer ents.mu.RUnlock()
	if int(index) >= len(ents.generations) {
		return Entity{}
	}
	return Entity{index: index, generation: ents.generations[index]}
}

// At is the join accessor for the entity set view.
func (ents *Entities) At(index uint32) Entity {
	return ents.Entity(index)
}

// Len returns the number of entities in the committed live set.
func (ents *Entities) Len() int {
	return int(ents.committed.Count())
}

// Live returns a join view over a snapshot of every alive entity, including
// those created or deleted since the last barrier.
func (ents *Entities) Live() SetView {
	ents.mu.RLock()
	defer ents.mu.RUnlock()
	return Set(ents.live.Clone())
}

// maintain commits creations, retires every queued deletion and returns the
// retired indices so storages can drop their entries. Generations are bumped
// here, and only afterwards do the indices become reusable.
func (ents *Entities) maintain() []uint32 {
	ents.mu.Lock()
	defer ents.mu.Unlock()

	for _, index := range ents.raised {
		ents.committed.Set(uint(index))
	}
	ents.raised = ents.raised[:0]

	if len(ents.killed) == 0 {
		return nil
	}
	retired := make([]uint32, len(ents.killed))
	copy(retired, ents.killed)
	for _, index := range retired {
		ents.committed.Clear(uint(index))
		ents.live.Clear(uint(index))
		ents.generations[index]++
		if ents.generations[index] == 0 {
			ents.generations[index] = 1
		}
		ents.free = append(ents.free, index)
	}
	ents.killed = ents.killed[:0]
	ents.killedSet.ClearAll()
	return retired
}

func (ents *Entities) joinRole() role           { return roleRequired }
func (ents *Entities) joinMask() *bitset.BitSet { return &ents.committed }
func (ents *Entities) joinEntities() *Entities  { return ents }

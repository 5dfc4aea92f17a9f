package foreman

import (
	"errors"
	"fmt"
	"sync"
)

type operationType int

const (
	opInsert operationType = iota
	opRemove
	opExec
)

type operation struct {
	typ    operationType
	entity Entity
	apply  func(w *World) error
}

// LazyUpdates queues world mutations units cannot make with their own
// tokens. The queue is applied in order at the next Maintain, before deleted
// entities are retired.
type LazyUpdates struct {
	mu  sync.Mutex
	ops []operation
}

func (q *LazyUpdates) enqueue(op operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
}

// Len returns the number of queued operations.
func (q *LazyUpdates) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// EnqueueInsert queues inserting value for e. The T storage is registered on
// demand.
func EnqueueInsert[T any](q *LazyUpdates, e Entity, value T) {
	q.enqueue(operation{
		typ:    opInsert,
		entity: e,
		apply: func(w *World) error {
			Register[T](w)
			return Insert(w, e, value)
		},
	})
}

// EnqueueRemove queues removing e's T.
func EnqueueRemove[T any](q *LazyUpdates, e Entity) {
	q.enqueue(operation{
		typ:    opRemove,
		entity: e,
		apply: func(w *World) error {
			return w.Exec(func(s *Scope) error {
				sto, err := WriteComponents[T](s)
				if err != nil {
					return err
				}
				sto.Remove(e)
				return nil
			})
		},
	})
}

// Exec queues fn to run with exclusive access to the world.
func (q *LazyUpdates) Exec(fn func(w *World) error) {
	q.enqueue(operation{typ: opExec, apply: fn})
}

func (q *LazyUpdates) take() []operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops
}

// apply drains the queue. Component operations on entities that died or are
// pending deletion are skipped. Operations queued by an Exec run in the same
// pass. A failing operation does not stop the ones after it; every failure
// is returned joined.
func (q *LazyUpdates) apply(w *World) error {
	var errs []error
	for ops := q.take(); len(ops) > 0; ops = q.take() {
		for _, op := range ops {
			if op.typ != opExec && (!w.entities.IsAlive(op.entity) || w.entities.Pending(op.entity)) {
				continue
			}
			if err := op.apply(w); err != nil {
				errs = append(errs, op.fail(err))
			}
		}
	}
	return errors.Join(errs...)
}

func (op operation) fail(err error) error {
	switch op.typ {
	case opInsert:
		return fmt.Errorf("failed to apply queued insert on %v: %w", op.entity, err)
	case opRemove:
		return fmt.Errorf("failed to apply queued remove on %v: %w", op.entity, err)
	default:
		return fmt.Errorf("failed to apply queued exec: %w", err)
	}
}

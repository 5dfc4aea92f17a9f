package foreman

import (
	"sync"
	"sync/atomic"
)

// DefaultChunk is how many indices a parallel join worker claims at once.
const DefaultChunk = 1024

// ParCursor is the parallel form of a join. The index range is cut into
// chunks that workers claim from a shared counter until none are left, so
// fast workers take over the remainder of slow ones.
type ParCursor struct {
	plan  joinPlan
	pool  *workerPool
	chunk uint
}

// ParJoin builds a parallel join running on the scope's worker pool. Outside
// a dispatcher it runs on the calling goroutine.
func ParJoin(s *Scope, views ...View) *ParCursor {
	return &ParCursor{plan: planJoin(views), pool: s.pool, chunk: DefaultChunk}
}

// WithChunk overrides the claim size.
func (p *ParCursor) WithChunk(n uint) *ParCursor {
	if n > 0 {
		p.chunk = n
	}
	return p
}

// ForEach calls fn once per matching index, concurrently. fn may only write
// to the entity it is visiting. A panic in fn is re-raised on the caller
// after every worker has stopped.
func (p *ParCursor) ForEach(fn func(index uint32)) {
	if p.plan.driver == nil {
		return
	}
	limit := p.plan.driver.Len()
	chunks := (limit + p.chunk - 1) / p.chunk
	if chunks == 0 {
		return
	}

	var (
		claimed atomic.Uint64
		wg      sync.WaitGroup
		once    sync.Once
		failed  atomic.Bool
		fault   any
	)
	work := func() {
		defer func() {
			if r := recover(); r != nil {
				once.Do(func() {
					fault = r
					failed.Store(true)
				})
			}
		}()
		for {
			c := uint(claimed.Add(1) - 1)
			if c >= chunks || failed.Load() {
				return
			}
			lo, hi := c*p.chunk, min((c+1)*p.chunk, limit)
			for i, ok := p.plan.driver.NextSet(lo); ok && i < hi; i, ok = p.plan.driver.NextSet(i + 1) {
				if p.plan.matches(i) {
					fn(uint32(i))
				}
			}
		}
	}

	helpers := min(uint(p.pool.workers()-1), chunks-1)
	for range helpers {
		wg.Add(1)
		if !p.pool.trySubmit(func() {
			defer wg.Done()
			work()
		}) {
			wg.Done()
			break
		}
	}
	work()
	wg.Wait()

	if failed.Load() {
		panic(fault)
	}
}

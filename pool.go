package foreman

import (
	"github.com/panjf2000/ants/v2"
)

// workerPool is the fixed set of goroutines stage members and parallel joins
// run on. Submission never blocks: when every worker is busy the caller runs
// the task itself, so a task may safely fan out into the same pool.
type workerPool struct {
	pool *ants.Pool
	size int
}

func newWorkerPool(size int) (*workerPool, error) {
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: pool, size: size}, nil
}

// trySubmit hands task to an idle worker and reports whether one took it.
func (p *workerPool) trySubmit(task func()) bool {
	if p == nil {
		return false
	}
	return p.pool.Submit(task) == nil
}

func (p *workerPool) workers() int {
	if p == nil {
		return 1
	}
	return p.size
}

func (p *workerPool) release() {
	if p != nil {
		p.pool.Release()
	}
}

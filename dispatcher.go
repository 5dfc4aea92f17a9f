package foreman

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
	"github.com/willf/bitset"
)

type unit struct {
	name     string
	sys      System
	access   Descriptor
	declared map[Identity]Mode
	mask     accessMask
	deps     []int
	stage    int
}

// Builder collects units and their ordering, then compiles them into a
// Dispatcher. Errors are reported by Build.
type Builder struct {
	units   []*unit
	tail    []*unit
	names   map[string]int
	barrier int
	workers int
	err     error
}

func newBuilder() *Builder {
	return &Builder{
		names:   make(map[string]int),
		workers: Config.Workers(),
	}
}

// With adds a staged unit that runs after every unit named in deps. deps
// must name units added earlier.
func (b *Builder) With(sys System, name string, deps ...string) *Builder {
	if b.err != nil {
		return b
	}
	if b.taken(name) {
		b.err = DuplicateUnitError{Name: name}
		return b
	}
	u := &unit{name: name, sys: sys, access: sys.Access()}
	for _, dep := range deps {
		i, ok := b.names[dep]
		if !ok {
			b.err = UnknownDependencyError{Unit: name, Dependency: dep}
			return b
		}
		u.deps = append(u.deps, i)
	}
	for i := 0; i < b.barrier; i++ {
		u.deps = append(u.deps, i)
	}
	b.names[name] = len(b.units)
	b.units = append(b.units, u)
	return b
}

// WithBarrier orders every unit added afterwards after every unit added
// before.
func (b *Builder) WithBarrier() *Builder {
	b.barrier = len(b.units)
	return b
}

// WithTail adds a unit to the serial tail. Tail units run one at a time, in
// the order they were added, after all staged units. They may touch state
// they did not declare.
func (b *Builder) WithTail(sys System, name string) *Builder {
	if b.err != nil {
		return b
	}
	if b.taken(name) {
		b.err = DuplicateUnitError{Name: name}
		return b
	}
	b.tail = append(b.tail, &unit{name: name, sys: sys, access: sys.Access()})
	return b
}

// WithWorkers sets the size of the dispatcher's worker pool.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.workers = n
	}
	return b
}

func (b *Builder) taken(name string) bool {
	if _, ok := b.names[name]; ok {
		return true
	}
	for _, u := range b.tail {
		if u.name == name {
			return true
		}
	}
	return false
}

// Build checks every pair of conflicting units is ordered and partitions the
// units into stages whose members never conflict.
func (b *Builder) Build() (*Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}
	schema := newIdentitySchema()
	for _, u := range b.units {
		m, err := compileMask(schema, u.access)
		if err != nil {
			return nil, err
		}
		u.mask = m
		u.declared = u.access.modes()
	}

	// Dependencies always point backwards, so one forward pass yields the
	// transitive closure.
	ancestors := make([]bitset.BitSet, len(b.units))
	for i, u := range b.units {
		for _, dep := range u.deps {
			ancestors[i].InPlaceUnion(&ancestors[dep])
			ancestors[i].Set(uint(dep))
		}
	}
	for j, later := range b.units {
		for i := 0; i < j; i++ {
			earlier := b.units[i]
			if !earlier.mask.conflicts(later.mask) || ancestors[j].Test(uint(i)) {
				continue
			}
			id, _ := conflictingIdentity(earlier.access, later.access)
			return nil, UnorderedConflictError{First: earlier.name, Second: later.name, ID: id}
		}
	}

	var stages [][]*unit
	for _, u := range b.units {
		for _, dep := range u.deps {
			u.stage = max(u.stage, b.units[dep].stage+1)
		}
		for len(stages) <= u.stage {
			stages = append(stages, nil)
		}
		stages[u.stage] = append(stages[u.stage], u)
	}

	pool, err := newWorkerPool(b.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	d := &Dispatcher{stages: stages, tail: b.tail, pool: pool}
	Config.Logger().Debug("dispatcher built", "stages", d.Stages(), "tail", len(d.tail), "workers", b.workers)
	return d, nil
}

// Dispatcher runs one cycle of its units per Dispatch call.
type Dispatcher struct {
	stages  [][]*unit
	tail    []*unit
	pool    *workerPool
	running atomic.Bool
}

// Stages returns unit names grouped by stage, tail excluded.
func (d *Dispatcher) Stages() [][]string {
	out := make([][]string, len(d.stages))
	for i, stage := range d.stages {
		for _, u := range stage {
			out[i] = append(out[i], u.name)
		}
	}
	return out
}

// Tail returns the serial tail's unit names in run order.
func (d *Dispatcher) Tail() []string {
	out := make([]string, len(d.tail))
	for i, u := range d.tail {
		out[i] = u.name
	}
	return out
}

func (d *Dispatcher) all() []*unit {
	var units []*unit
	for _, stage := range d.stages {
		units = append(units, stage...)
	}
	return append(units, d.tail...)
}

// Setup registers the default storages and resources every unit declares,
// never replacing what the embedder inserted, checks strictly required
// resources exist and then runs units' own Setup.
func (d *Dispatcher) Setup(w *World) error {
	var errs []error
	for _, u := range d.all() {
		for _, a := range u.access {
			if a.prepare == nil {
				continue
			}
			if err := a.prepare(w); err != nil {
				errs = append(errs, SystemError{Unit: u.name, Err: err})
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for _, u := range d.all() {
		if s, ok := u.sys.(Setuper); ok {
			if err := s.Setup(w); err != nil {
				return SystemError{Unit: u.name, Err: err}
			}
		}
	}
	return nil
}

// Dispatch runs one cycle and blocks until the tail completes. A failing
// unit aborts the cycle: its stage siblings finish, no later stage starts.
func (d *Dispatcher) Dispatch(w *World) error {
	if !d.running.CompareAndSwap(false, true) {
		return DispatchInProgressError{}
	}
	defer d.running.Store(false)

	for i, stage := range d.stages {
		if err := d.runStage(w, stage); err != nil {
			Config.Logger().Debug("cycle aborted", "stage", i, "err", err)
			return err
		}
	}
	for _, u := range d.tail {
		if err := d.run(w, u, nil); err != nil {
			Config.Logger().Debug("cycle aborted", "tail", u.name, "err", err)
			return err
		}
	}
	return nil
}

func (d *Dispatcher) runStage(w *World, stage []*unit) error {
	errs := make([]error, len(stage))
	var wg sync.WaitGroup
	last := len(stage) - 1
	for i, u := range stage[:last] {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			errs[i] = d.run(w, u, u.declared)
		}
		if !d.pool.trySubmit(task) {
			task()
		}
	}
	errs[last] = d.run(w, stage[last], stage[last].declared)
	wg.Wait()
	return errors.Join(errs...)
}

// run invokes one unit. Its tokens are released on every exit path.
func (d *Dispatcher) run(w *World, u *unit, declared map[Identity]Mode) (err error) {
	s := newScope(w, u.name, declared, d.pool)
	defer s.release()
	defer func() {
		if r := recover(); r != nil {
			trace, _ := bark.GetTrace(bark.AddTrace(fmt.Errorf("%v", r)))
			err = SystemPanicError{Unit: u.name, Value: r, Trace: trace}
		}
	}()
	if err := u.sys.Run(s); err != nil {
		return SystemError{Unit: u.name, Err: err}
	}
	return nil
}

// Close stops the worker pool.
func (d *Dispatcher) Close() {
	d.pool.release()
}

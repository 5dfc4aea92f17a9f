package foreman

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

// recorder collects unit names in the order they ran.
type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) unit(name string, d Descriptor) SystemFunc {
	return SystemFunc{
		Accesses: d,
		Fn: func(s *Scope) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ran = append(r.ran, name)
			return nil
		},
	}
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ran := r.ran
	r.ran = nil
	return ran
}

func TestBuildRejectsUnorderedConflicts(t *testing.T) {
	rec := &recorder{}
	tests := []struct {
		name    string
		first   Descriptor
		second  Descriptor
		deps    []string
		wantErr bool
	}{
		{"Two writers", Descriptor{Writes[Position]()}, Descriptor{Writes[Position]()}, nil, true},
		{"Writer then reader", Descriptor{Writes[Position]()}, Descriptor{Reads[Position]()}, nil, true},
		{"Reader then writer", Descriptor{Reads[Position]()}, Descriptor{Writes[Position]()}, nil, true},
		{"Two readers", Descriptor{Reads[Position]()}, Descriptor{Reads[Position]()}, nil, false},
		{"Disjoint writers", Descriptor{Writes[Position]()}, Descriptor{Writes[Velocity]()}, nil, false},
		{"Ordered writers", Descriptor{Writes[Position]()}, Descriptor{Writes[Position]()}, []string{"first"}, false},
		{"Storage and resource of one type", Descriptor{Writes[Position]()}, Descriptor{WritesResource[Position]()}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Factory.NewBuilder().
				With(rec.unit("first", tt.first), "first").
				With(rec.unit("second", tt.second), "second", tt.deps...).
				Build()
			var unordered UnorderedConflictError
			if errors.As(err, &unordered) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if unordered.First != "first" || unordered.Second != "second" || unordered.ID != StorageID[Position]() {
					t.Errorf("Build() error = %+v", unordered)
				}
				return
			}
			d.Close()
		})
	}
}

func TestBuildErrors(t *testing.T) {
	rec := &recorder{}
	tests := []struct {
		name  string
		build func() error
		check func(err error) bool
	}{
		{
			name: "Unknown dependency",
			build: func() error {
				_, err := Factory.NewBuilder().With(rec.unit("a", nil), "a", "b").Build()
				return err
			},
			check: func(err error) bool {
				var target UnknownDependencyError
				return errors.As(err, &target)
			},
		},
		{
			name: "Duplicate name",
			build: func() error {
				_, err := Factory.NewBuilder().
					With(rec.unit("a", nil), "a").
					WithTail(rec.unit("a", nil), "a").
					Build()
				return err
			},
			check: func(err error) bool {
				var target DuplicateUnitError
				return errors.As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.build(); !tt.check(err) {
				t.Errorf("Build() error = %v", err)
			}
		})
	}
}

// Wrappers that turn one base type into several distinct storages.
type (
	slotA[T any] struct{ v T }
	slotB[T any] struct{ v T }
	slotC[T any] struct{ v T }
	slotD[T any] struct{ v T }
	slotE[T any] struct{ v T }
	slotF[T any] struct{ v T }
	slotG[T any] struct{ v T }
	slotH[T any] struct{ v T }
)

func slotWrites[T any]() Descriptor {
	return Descriptor{
		Writes[T](),
		Writes[slotA[T]](), Writes[slotB[T]](), Writes[slotC[T]](), Writes[slotD[T]](),
		Writes[slotE[T]](), Writes[slotF[T]](), Writes[slotG[T]](), Writes[slotH[T]](),
	}
}

// wideDescriptor declares 72 distinct storages.
func wideDescriptor() Descriptor {
	var d Descriptor
	d = append(d, slotWrites[bool]()...)
	d = append(d, slotWrites[int8]()...)
	d = append(d, slotWrites[int16]()...)
	d = append(d, slotWrites[int32]()...)
	d = append(d, slotWrites[int64]()...)
	d = append(d, slotWrites[uint8]()...)
	d = append(d, slotWrites[uint16]()...)
	d = append(d, slotWrites[uint32]()...)
	return d
}

func TestBuildIdentityLimit(t *testing.T) {
	wide := wideDescriptor()
	if len(wide) <= MaxIdentities {
		t.Skipf("mask holds %d identities, descriptor only declares %d", MaxIdentities, len(wide))
	}
	rec := &recorder{}

	tests := []struct {
		name    string
		units   []Descriptor
		wantErr bool
	}{
		{"Exactly at the limit", []Descriptor{wide[:MaxIdentities]}, false},
		{"One unit over the limit", []Descriptor{wide}, true},
		{"Spread over two units", []Descriptor{wide[:MaxIdentities/2], wide[MaxIdentities/2:]}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Factory.NewBuilder()
			for i, d := range tt.units {
				name := string(rune('a' + i))
				b.With(rec.unit(name, d), name)
			}
			d, err := b.Build()
			var tooMany TooManyIdentitiesError
			if errors.As(err, &tooMany) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d != nil {
				d.Close()
			}
		})
	}
}

func TestStagePlan(t *testing.T) {
	rec := &recorder{}
	d, err := Factory.NewBuilder().
		With(rec.unit("physics", Descriptor{Writes[Position](), Reads[Velocity]()}), "physics").
		With(rec.unit("ai", Descriptor{Writes[Velocity](), Reads[Health]()}), "ai", "physics").
		With(rec.unit("render", Descriptor{Reads[Position]()}), "render", "physics").
		With(rec.unit("regen", Descriptor{Writes[Health]()}), "regen", "ai").
		WithTail(rec.unit("log", Descriptor{Reads[Health]()}), "log").
		WithTail(rec.unit("flush", nil), "flush").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	want := [][]string{{"physics"}, {"ai", "render"}, {"regen"}}
	got := d.Stages()
	if len(got) != len(want) {
		t.Fatalf("Stages() = %v, want %v", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("stage %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !slices.Equal(d.Tail(), []string{"log", "flush"}) {
		t.Errorf("Tail() = %v", d.Tail())
	}
}

func TestDependencyOrderHoldsEveryCycle(t *testing.T) {
	rec := &recorder{}
	w := Factory.NewWorld()
	d, err := Factory.NewBuilder().
		WithWorkers(4).
		With(rec.unit("write", Descriptor{Writes[Position]()}), "write").
		With(rec.unit("other", Descriptor{Writes[Velocity]()}), "other").
		With(rec.unit("after", Descriptor{Writes[Position]()}), "after", "write").
		WithTail(rec.unit("tail", Descriptor{Reads[Position]()}), "tail").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()
	if err := d.Setup(w); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	for cycle := range 50 {
		if err := d.Dispatch(w); err != nil {
			t.Fatalf("cycle %d: Dispatch() error = %v", cycle, err)
		}
		ran := rec.take()
		if len(ran) != 4 {
			t.Fatalf("cycle %d: ran %v", cycle, ran)
		}
		if slices.Index(ran, "write") > slices.Index(ran, "after") {
			t.Errorf("cycle %d: %v runs after before write", cycle, ran)
		}
		if ran[3] != "tail" {
			t.Errorf("cycle %d: tail ran before staged units: %v", cycle, ran)
		}
		if err := w.Maintain(); err != nil {
			t.Fatalf("cycle %d: Maintain() error = %v", cycle, err)
		}
	}
}

func TestBarrier(t *testing.T) {
	rec := &recorder{}
	d, err := Factory.NewBuilder().
		With(rec.unit("a", Descriptor{Reads[Position]()}), "a").
		With(rec.unit("b", Descriptor{Reads[Velocity]()}), "b").
		WithBarrier().
		With(rec.unit("c", Descriptor{Writes[Position](), Writes[Velocity]()}), "c").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()
	if got := d.Stages(); len(got) != 2 || !slices.Equal(got[1], []string{"c"}) {
		t.Errorf("Stages() = %v", got)
	}
}

type Gravity struct {
	G float64
}

type Score struct {
	Points int
}

func TestSetupResources(t *testing.T) {
	rec := &recorder{}
	d, err := Factory.NewBuilder().
		With(rec.unit("score", Descriptor{WritesResource[Score](), Reads[Position]()}), "score").
		With(rec.unit("fall", Descriptor{ExpectsResource[Gravity]()}), "fall").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	w := Factory.NewWorld()
	InsertResource(w, Score{Points: 7})

	err = d.Setup(w)
	var missing MissingResourceError
	if !errors.As(err, &missing) || missing.ID != ResourceID[Gravity]() {
		t.Fatalf("Setup() error = %v, want MissingResourceError for Gravity", err)
	}

	InsertResource(w, Gravity{G: 9.8})
	if err := d.Setup(w); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if score, _ := Resource[Score](w); score.Points != 7 {
		t.Errorf("Setup overwrote Score: %v", score)
	}
	w.Exec(func(s *Scope) error {
		if _, err := ReadComponents[Position](s); err != nil {
			t.Errorf("Setup did not register Position: %v", err)
		}
		return nil
	})
}

type readerUnit struct {
	reader ReaderID
	seen   int
}

func (u *readerUnit) Access() Descriptor { return Descriptor{Reads[tracked]()} }

func (u *readerUnit) Setup(w *World) error {
	return w.Exec(func(s *Scope) error {
		sto, err := ReadComponents[tracked](s)
		if err != nil {
			return err
		}
		events, err := sto.Events()
		if err != nil {
			return err
		}
		u.reader = events.Register()
		return nil
	})
}

func (u *readerUnit) Run(s *Scope) error {
	sto, err := ReadComponents[tracked](s)
	if err != nil {
		return err
	}
	events, err := sto.Events()
	if err != nil {
		return err
	}
	got, err := events.Read(u.reader)
	u.seen += len(got)
	return err
}

func TestSetuperRunsAfterDefaults(t *testing.T) {
	unit := &readerUnit{}
	d, err := Factory.NewBuilder().WithTail(unit, "reader").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	w := Factory.NewWorld()
	if err := d.Setup(w); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	e := w.Create()
	Insert(w, e, tracked{Value: 1})
	if err := d.Dispatch(w); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if unit.seen != 1 {
		t.Errorf("Reader saw %d events, want 1", unit.seen)
	}
}

func TestUndeclaredAccessAbortsCycle(t *testing.T) {
	rec := &recorder{}
	sneaky := SystemFunc{
		Accesses: Descriptor{Reads[Position]()},
		Fn: func(s *Scope) error {
			if _, err := WriteComponents[Position](s); err != nil {
				return err
			}
			return nil
		},
	}
	d, err := Factory.NewBuilder().
		With(sneaky, "sneaky").
		With(rec.unit("next", nil), "next", "sneaky").
		WithTail(rec.unit("tail", nil), "tail").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	w := Factory.NewWorld()
	d.Setup(w)
	err = d.Dispatch(w)

	var conflict AccessConflictError
	if !errors.As(err, &conflict) || !conflict.Undeclared || conflict.Unit != "sneaky" {
		t.Fatalf("Dispatch() error = %v, want undeclared AccessConflictError", err)
	}
	if !IsFatal(err) {
		t.Errorf("IsFatal() = false for %v", err)
	}
	if ran := rec.take(); len(ran) != 0 {
		t.Errorf("Units after the failing stage ran: %v", ran)
	}
	if err := w.Maintain(); err != nil {
		t.Errorf("Tokens leaked past the failed cycle: %v", err)
	}
}

func TestUnitErrorsAndPanics(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		fn    func(s *Scope) error
		check func(err error) bool
	}{
		{
			name: "Returned error",
			fn:   func(s *Scope) error { return boom },
			check: func(err error) bool {
				var unitErr SystemError
				return errors.Is(err, boom) && errors.As(err, &unitErr) && unitErr.Unit == "unit"
			},
		},
		{
			name: "Panic",
			fn: func(s *Scope) error {
				WriteComponents[Position](s)
				panic("kaboom")
			},
			check: func(err error) bool {
				var p SystemPanicError
				return errors.As(err, &p) && p.Value == "kaboom" && len(p.Trace.Frames) > 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Factory.NewBuilder().
				With(SystemFunc{Accesses: Descriptor{Writes[Position]()}, Fn: tt.fn}, "unit").
				Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			defer d.Close()

			w := Factory.NewWorld()
			d.Setup(w)
			err = d.Dispatch(w)
			if !tt.check(err) {
				t.Errorf("Dispatch() error = %v", err)
			}
			if IsFatal(err) {
				t.Errorf("IsFatal() = true for %v", err)
			}
			if err := w.Maintain(); err != nil {
				t.Errorf("Maintain() after failure error = %v", err)
			}
		})
	}
}

func TestDispatchIsNotReentrant(t *testing.T) {
	var (
		d     *Dispatcher
		inner error
	)
	d, err := Factory.NewBuilder().
		WithTail(SystemFunc{Fn: func(s *Scope) error {
			inner = d.Dispatch(s.world)
			return nil
		}}, "nested").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	if err := d.Dispatch(Factory.NewWorld()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	var busy DispatchInProgressError
	if !errors.As(inner, &busy) {
		t.Errorf("Nested Dispatch() error = %v, want DispatchInProgressError", inner)
	}
}

func TestReadersShareAStage(t *testing.T) {
	w := Factory.NewWorld()
	var (
		mu      sync.Mutex
		started int
	)
	reader := SystemFunc{
		Accesses: Descriptor{Reads[Position](), ReadsResource[Score]()},
		Fn: func(s *Scope) error {
			if _, err := ReadComponents[Position](s); err != nil {
				return err
			}
			if _, err := ReadResource[Score](s); err != nil {
				return err
			}
			mu.Lock()
			started++
			mu.Unlock()
			return nil
		},
	}
	b := Factory.NewBuilder().WithWorkers(4)
	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		b.With(reader, name)
	}
	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer d.Close()

	if len(d.Stages()) != 1 {
		t.Fatalf("Stages() = %v, want one stage", d.Stages())
	}
	d.Setup(w)
	for range 20 {
		if err := d.Dispatch(w); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	if started != 80 {
		t.Errorf("Readers ran %d times, want 80", started)
	}
}

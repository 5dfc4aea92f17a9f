package saveload

import (
	"errors"
	"testing"

	"github.com/TheBitDrifter/foreman"
)

// Test component types
type Position struct {
	X, Y float64
}

type Mass struct {
	Kg float64
}

type Tag struct {
	Label string
}

// Marker kind used across the tests
type saved struct{}

func codecs() []Codec {
	return []Codec{
		Component[Position]("position"),
		Component[Mass]("mass"),
	}
}

func markAll(t *testing.T, w *foreman.World, entities ...foreman.Entity) []Marker[saved] {
	t.Helper()
	foreman.Register[Marker[saved]](w)
	foreman.ResourceOrDefault[Allocator[saved]](w)

	markers := make([]Marker[saved], len(entities))
	err := w.Exec(func(s *foreman.Scope) error {
		for i, e := range entities {
			m, err := Mark[saved](s, e)
			if err != nil {
				return err
			}
			markers[i] = m
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	return markers
}

func TestRoundTripIntoFreshWorld(t *testing.T) {
	src := foreman.Factory.NewWorld()
	foreman.Register[Position](src)
	foreman.Register[Mass](src)

	type entry struct {
		pos  Position
		mass Mass
	}
	entries := []entry{
		{Position{1, 2}, Mass{0.17}},
		{Position{3, 4}, Mass{0.16}},
		{Position{5, 6}, Mass{0.2}},
	}
	var marked []foreman.Entity
	for _, en := range entries {
		e := src.Create()
		foreman.Insert(src, e, en.pos)
		foreman.Insert(src, e, en.mass)
		marked = append(marked, e)
	}
	unmarked := src.Create()
	foreman.Insert(src, unmarked, Position{99, 99})
	foreman.Insert(src, unmarked, Mass{9})

	markers := markAll(t, src, marked...)
	if err := src.Maintain(); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}

	data, err := Serialize[saved](src, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	dst := foreman.Factory.NewWorld()
	restored, err := Deserialize[saved](dst, data, codecs()...)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(restored) != len(entries) {
		t.Fatalf("Restored %d entities, want %d", len(restored), len(entries))
	}
	if err := dst.Maintain(); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}

	alloc, err := foreman.Resource[Allocator[saved]](dst)
	if err != nil {
		t.Fatalf("Resource() error = %v", err)
	}
	for i, en := range entries {
		e, ok := alloc.Lookup(markers[i].ID)
		if !ok {
			t.Errorf("Marker %d not restored", markers[i].ID)
			continue
		}
		if got, _ := foreman.Get[Marker[saved]](dst, e); got != markers[i] {
			t.Errorf("Marker = %v, want %v", got, markers[i])
		}
		if got, _ := foreman.Get[Position](dst, e); got != en.pos {
			t.Errorf("Position = %v, want %v", got, en.pos)
		}
		if got, _ := foreman.Get[Mass](dst, e); got != en.mass {
			t.Errorf("Mass = %v, want %v", got, en.mass)
		}
	}

	if n := dst.Entities().Len(); n != len(entries) {
		t.Errorf("Destination holds %d entities, want %d", n, len(entries))
	}
}

func TestSerializeBeforeMaintain(t *testing.T) {
	src := foreman.Factory.NewWorld()
	foreman.Register[Position](src)
	foreman.Register[Mass](src)

	var marked []foreman.Entity
	for i := range 3 {
		e := src.Create()
		foreman.Insert(src, e, Position{float64(i), float64(i)})
		foreman.Insert(src, e, Mass{1})
		marked = append(marked, e)
	}
	markAll(t, src, marked...)

	data, err := Serialize[saved](src, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	// Load into a fresh world and save again, still without a barrier.
	mid := foreman.Factory.NewWorld()
	restored, err := Deserialize[saved](mid, data, codecs()...)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(restored) != len(marked) {
		t.Fatalf("Restored %d entities, want %d", len(restored), len(marked))
	}
	again, err := Serialize[saved](mid, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	dst := foreman.Factory.NewWorld()
	final, err := Deserialize[saved](dst, again, codecs()...)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(final) != len(marked) {
		t.Fatalf("Second round restored %d entities, want %d", len(final), len(marked))
	}
	seen := make(map[Position]bool)
	for _, e := range final {
		pos, ok := foreman.Get[Position](dst, e)
		if !ok {
			t.Errorf("Entity %v lost its Position", e)
		}
		seen[pos] = true
	}
	for i := range marked {
		if want := (Position{float64(i), float64(i)}); !seen[want] {
			t.Errorf("Position %v missing after two round trips", want)
		}
	}
}

func TestSerializeSkipsRetiredEntities(t *testing.T) {
	w := foreman.Factory.NewWorld()
	foreman.Register[Position](w)
	foreman.Register[Mass](w)
	keep, drop := w.Create(), w.Create()
	markAll(t, w, keep, drop)
	w.Delete(drop)

	// Pending deletion is still alive.
	data, err := Serialize[saved](w, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if restored, _ := Deserialize[saved](foreman.Factory.NewWorld(), data, codecs()...); len(restored) != 2 {
		t.Errorf("Before Maintain restored %d entities, want 2", len(restored))
	}

	if err := w.Maintain(); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	data, err = Serialize[saved](w, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if restored, _ := Deserialize[saved](foreman.Factory.NewWorld(), data, codecs()...); len(restored) != 1 {
		t.Errorf("After Maintain restored %d entities, want 1", len(restored))
	}
}

func TestDeserializeReusesMarkedEntities(t *testing.T) {
	w := foreman.Factory.NewWorld()
	foreman.Register[Position](w)
	foreman.Register[Mass](w)

	e := w.Create()
	foreman.Insert(w, e, Position{1, 1})
	markAll(t, w, e)
	if err := w.Maintain(); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}

	data, err := Serialize[saved](w, codecs()...)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	foreman.Insert(w, e, Position{7, 7})

	restored, err := Deserialize[saved](w, data, codecs()...)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(restored) != 1 || restored[0] != e {
		t.Fatalf("Deserialize() = %v, want [%v]", restored, e)
	}
	if got, _ := foreman.Get[Position](w, e); got != (Position{1, 1}) {
		t.Errorf("Position = %v, want {1 1}", got)
	}
}

func TestUnknownComponentsAreIgnored(t *testing.T) {
	src := foreman.Factory.NewWorld()
	foreman.Register[Position](src)
	foreman.Register[Tag](src)

	e := src.Create()
	foreman.Insert(src, e, Position{2, 3})
	foreman.Insert(src, e, Tag{"cue"})
	markAll(t, src, e)
	src.Maintain()

	data, err := Serialize[saved](src, Component[Position]("position"), Component[Tag]("tag"))
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	dst := foreman.Factory.NewWorld()
	restored, err := Deserialize[saved](dst, data, Component[Position]("position"))
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if got, _ := foreman.Get[Position](dst, restored[0]); got != (Position{2, 3}) {
		t.Errorf("Position = %v, want {2 3}", got)
	}
	if _, ok := foreman.Get[Tag](dst, restored[0]); ok {
		t.Errorf("Tag restored without a codec")
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Garbage", []byte{0xc1, 0x00, 0x13}},
		{"Empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := foreman.Factory.NewWorld()
			_, err := Deserialize[saved](w, tt.data, codecs()...)
			var serr SerializationError
			if !errors.As(err, &serr) {
				t.Errorf("Deserialize() error = %v, want SerializationError", err)
			}
		})
	}
}

func TestAllocatorResync(t *testing.T) {
	w := foreman.Factory.NewWorld()
	a, b := w.Create(), w.Create()
	markers := markAll(t, w, a, b)
	if markers[0].ID != 1 || markers[1].ID != 2 {
		t.Fatalf("Marker ids = %d, %d, want 1, 2", markers[0].ID, markers[1].ID)
	}
	w.Delete(a)
	if err := w.Maintain(); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}

	err := w.Exec(func(s *foreman.Scope) error {
		entities, err := foreman.EntitiesOf(s)
		if err != nil {
			return err
		}
		sto, err := foreman.ReadComponents[Marker[saved]](s)
		if err != nil {
			return err
		}
		alloc, err := foreman.WriteResource[Allocator[saved]](s)
		if err != nil {
			return err
		}
		alloc.Resync(entities, sto)

		if alloc.Len() != 1 {
			t.Errorf("Len() = %d, want 1", alloc.Len())
		}
		if _, ok := alloc.Lookup(markers[0].ID); ok {
			t.Errorf("Deleted entity's marker still tracked")
		}
		if e, ok := alloc.Lookup(markers[1].ID); !ok || e != b {
			t.Errorf("Lookup(%d) = %v, %v, want %v", markers[1].ID, e, ok, b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	c := w.Create()
	if m := markAll(t, w, c); m[0].ID != 3 {
		t.Errorf("Fresh marker id = %d, want 3", m[0].ID)
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	w := foreman.Factory.NewWorld()
	e := w.Create()
	first := markAll(t, w, e)
	second := markAll(t, w, e)
	if first[0] != second[0] {
		t.Errorf("Mark() = %v then %v, want the same marker", first[0], second[0])
	}
}

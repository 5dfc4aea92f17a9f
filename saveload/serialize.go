package saveload

import (
	"fmt"

	"github.com/TheBitDrifter/foreman"
	iter_util "github.com/TheBitDrifter/util/iter"
	"github.com/vmihailenco/msgpack/v5"
)

const formatVersion = 1

type document struct {
	Version  int      `msgpack:"v"`
	Entities []record `msgpack:"e"`
}

type record struct {
	Marker     uint64                        `msgpack:"m"`
	Components map[string]msgpack.RawMessage `msgpack:"c"`
}

type encoder func(index uint32) (msgpack.RawMessage, bool, error)

type decoder func(e foreman.Entity, raw msgpack.RawMessage) error

// Codec encodes one component storage under a stable name.
type Codec interface {
	Name() string
	register(w *foreman.World)
	encoder(s *foreman.Scope) (encoder, error)
	decoder(s *foreman.Scope) (decoder, error)
}

type component[T any] struct {
	name string
}

// Component returns the codec for the T storage. name is what the saved
// data is keyed by and must not change between save and load.
func Component[T any](name string) Codec {
	return component[T]{name: name}
}

func (c component[T]) Name() string { return c.name }

func (c component[T]) register(w *foreman.World) { foreman.Register[T](w) }

func (c component[T]) encoder(s *foreman.Scope) (encoder, error) {
	sto, err := foreman.ReadComponents[T](s)
	if err != nil {
		return nil, err
	}
	view := sto.Maybe()
	return func(index uint32) (msgpack.RawMessage, bool, error) {
		value, ok := view.At(index)
		if !ok {
			return nil, false, nil
		}
		raw, err := msgpack.Marshal(value)
		return raw, true, err
	}, nil
}

func (c component[T]) decoder(s *foreman.Scope) (decoder, error) {
	sto, err := foreman.WriteComponents[T](s)
	if err != nil {
		return nil, err
	}
	return func(e foreman.Entity, raw msgpack.RawMessage) error {
		var value T
		if err := msgpack.Unmarshal(raw, &value); err != nil {
			return err
		}
		_, _, err := sto.Insert(e, value)
		return err
	}, nil
}

// Serialize encodes every alive entity marked with a K marker, together with
// the components the codecs name. Unmarked entities are left out. Entities
// created or deleted since the last Maintain are included.
func Serialize[K any](w *foreman.World, codecs ...Codec) ([]byte, error) {
	var data []byte
	err := w.Exec(func(s *foreman.Scope) error {
		entities, err := foreman.EntitiesOf(s)
		if err != nil {
			return err
		}
		markers, err := foreman.ReadComponents[Marker[K]](s)
		if err != nil {
			return err
		}
		encoders := make([]encoder, len(codecs))
		for i, c := range codecs {
			if encoders[i], err = c.encoder(s); err != nil {
				return err
			}
		}

		view := markers.View()
		indices := iter_util.Collect(foreman.Join(entities.Live(), view).All())
		doc := document{Version: formatVersion, Entities: make([]record, 0, len(indices))}
		for _, index := range indices {
			rec := record{
				Marker:     view.At(index).ID,
				Components: make(map[string]msgpack.RawMessage, len(codecs)),
			}
			for i, encode := range encoders {
				raw, ok, err := encode(index)
				if err != nil {
					return SerializationError{Marker: rec.Marker, Component: codecs[i].Name(), Err: err}
				}
				if ok {
					rec.Components[codecs[i].Name()] = raw
				}
			}
			doc.Entities = append(doc.Entities, rec)
		}

		data, err = msgpack.Marshal(doc)
		if err != nil {
			return SerializationError{Err: err}
		}
		return nil
	})
	return data, err
}

// Deserialize restores the entities in data. A marker id already tracked by
// the world's allocator and still alive is restored onto the same entity;
// any other id gets a new entity. Components the codecs do not name are
// ignored. The returned entities are usable at once and join after the next
// Maintain.
func Deserialize[K any](w *foreman.World, data []byte, codecs ...Codec) ([]foreman.Entity, error) {
	var doc document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, SerializationError{Err: err}
	}
	if doc.Version != formatVersion {
		return nil, SerializationError{Err: fmt.Errorf("unsupported format version %d", doc.Version)}
	}

	foreman.Register[Marker[K]](w)
	foreman.ResourceOrDefault[Allocator[K]](w)
	for _, c := range codecs {
		c.register(w)
	}

	restored := make([]foreman.Entity, 0, len(doc.Entities))
	err := w.Exec(func(s *foreman.Scope) error {
		entities, err := foreman.EntitiesOf(s)
		if err != nil {
			return err
		}
		markers, err := foreman.WriteComponents[Marker[K]](s)
		if err != nil {
			return err
		}
		alloc, err := foreman.WriteResource[Allocator[K]](s)
		if err != nil {
			return err
		}
		decoders := make(map[string]decoder, len(codecs))
		for _, c := range codecs {
			if decoders[c.Name()], err = c.decoder(s); err != nil {
				return err
			}
		}

		for _, rec := range doc.Entities {
			e, ok := alloc.Lookup(rec.Marker)
			if !ok || !entities.IsAlive(e) {
				e = entities.Create()
				if _, err := alloc.Claim(rec.Marker, e, markers); err != nil {
					return err
				}
			}
			for name, raw := range rec.Components {
				decode, ok := decoders[name]
				if !ok {
					continue
				}
				if err := decode(e, raw); err != nil {
					return SerializationError{Marker: rec.Marker, Component: name, Err: err}
				}
			}
			restored = append(restored, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

/*
Package foreman provides the storage and scheduling core of an Entity-Component-System runtime
for tick-driven simulations.

Units of logic declare which storages and resources they read and write. A dispatcher built
from those declarations runs every cycle's units in conflict-free parallel stages, followed by
a serial tail, without the units taking any locks themselves.

Core Concepts:

  - Entity: A generational handle. Deletions are deferred to the maintenance barrier.
  - Storage: Per-component container keyed by entity index (Vec, Paged, Null, Flagged).
  - Resource: A singleton value keyed by type.
  - Descriptor: The list of identities a unit reads or writes.
  - Join: Lazy intersection over storages, sequential or parallel.
  - Channel: Ordered change log trailed by independent readers.

Basic Usage:

	world := foreman.Factory.NewWorld()

	movement := foreman.SystemFunc{
		Accesses: foreman.Descriptor{foreman.Writes[Position](), foreman.Reads[Velocity]()},
		Fn: func(s *foreman.Scope) error {
			pos, err := foreman.WriteComponents[Position](s)
			if err != nil {
				return err
			}
			vel, err := foreman.ReadComponents[Velocity](s)
			if err != nil {
				return err
			}
			p, v := pos.Mut(), vel.View()
			for i := range foreman.Join(p, v).All() {
				p.At(i).X += v.At(i).X
			}
			return nil
		},
	}

	dispatcher, err := foreman.Factory.NewBuilder().
		With(movement, "movement").
		Build()
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	if err := dispatcher.Setup(world); err != nil {
		return err
	}
	for range steps {
		if err := dispatcher.Dispatch(world); err != nil {
			return err
		}
		if err := world.Maintain(); err != nil {
			return err
		}
	}
*/
package foreman

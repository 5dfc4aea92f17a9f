package main

import (
	"github.com/TheBitDrifter/foreman"
	"github.com/TheBitDrifter/foreman/saveload"
)

func codecs() []saveload.Codec {
	return []saveload.Codec{
		saveload.Component[Position]("position"),
		saveload.Component[Velocity]("velocity"),
		saveload.Component[Ball]("ball"),
	}
}

func register(w *foreman.World) {
	foreman.Register[Position](w)
	foreman.Register[Velocity](w)
	foreman.Register[Ball](w)
	foreman.Register[Table](w)
	foreman.Register[saveload.Marker[ball]](w)
	foreman.ResourceOrDefault[saveload.Allocator[ball]](w)
}

func spawnTable(w *foreman.World, cfg Config) (foreman.Entity, error) {
	register(w)
	e := w.Create()
	return e, foreman.Insert(w, e, Table{Width: cfg.Table.Width, Height: cfg.Table.Height})
}

// spawnBalls creates the cue ball followed by the object balls and marks
// them for saving.
func spawnBalls(w *foreman.World, cfg Config) ([]foreman.Entity, error) {
	register(w)
	props := Ball{Radius: cfg.Ball.Radius, Mass: cfg.Ball.Mass, Restitution: cfg.Ball.Restitution}

	type start struct {
		pos Position
		vel Velocity
	}
	starts := []start{{
		pos: Position{X: cfg.CueBall.X, Y: cfg.CueBall.Y},
		vel: Velocity{X: cfg.CueBall.VX * 100, Y: cfg.CueBall.VY * 100},
	}}
	for _, p := range cfg.ObjectBalls.Positions {
		starts = append(starts, start{pos: Position{X: p.X, Y: p.Y}})
	}

	var created []foreman.Entity
	err := w.Exec(func(s *foreman.Scope) error {
		ents, err := foreman.EntitiesOf(s)
		if err != nil {
			return err
		}
		pos, err := foreman.WriteComponents[Position](s)
		if err != nil {
			return err
		}
		vel, err := foreman.WriteComponents[Velocity](s)
		if err != nil {
			return err
		}
		balls, err := foreman.WriteComponents[Ball](s)
		if err != nil {
			return err
		}
		for _, st := range starts {
			e := ents.Create()
			if _, _, err := pos.Insert(e, st.pos); err != nil {
				return err
			}
			if _, _, err := vel.Insert(e, st.vel); err != nil {
				return err
			}
			if _, _, err := balls.Insert(e, props); err != nil {
				return err
			}
			if _, err := saveload.Mark[ball](s, e); err != nil {
				return err
			}
			created = append(created, e)
		}
		return nil
	})
	return created, err
}

// restoreBalls loads balls from a snapshot written by a previous run.
func restoreBalls(w *foreman.World, data []byte) ([]foreman.Entity, error) {
	register(w)
	return saveload.Deserialize[ball](w, data, codecs()...)
}

func snapshotBalls(w *foreman.World) ([]byte, error) {
	return saveload.Serialize[ball](w, codecs()...)
}

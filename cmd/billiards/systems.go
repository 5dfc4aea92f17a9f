package main

import (
	"errors"
	"log/slog"
	"math"

	"github.com/TheBitDrifter/foreman"
)

var (
	_ foreman.System  = physics{}
	_ foreman.System  = collision{}
	_ foreman.System  = &logging{}
	_ foreman.Setuper = &logging{}
)

// physics advances every moving entity by one Euler step.
type physics struct{}

func (physics) Access() foreman.Descriptor {
	return foreman.Descriptor{
		foreman.Writes[Position](),
		foreman.Reads[Velocity](),
		foreman.ExpectsResource[TimeDelta](),
	}
}

func (physics) Run(s *foreman.Scope) error {
	pos, err := foreman.WriteComponents[Position](s)
	if err != nil {
		return err
	}
	vel, err := foreman.ReadComponents[Velocity](s)
	if err != nil {
		return err
	}
	td, err := foreman.ReadResource[TimeDelta](s)
	if err != nil {
		return err
	}

	dt := float32(td.DT.Seconds())
	p, v := pos.Mut(), vel.View()
	foreman.ParJoin(s, p, v).ForEach(func(i uint32) {
		at, step := p.At(i), v.Ptr(i)
		at.X += step.X * dt
		at.Y += step.Y * dt
	})
	return nil
}

// collision keeps balls on the table and resolves ball against ball
// contacts.
type collision struct{}

func (collision) Access() foreman.Descriptor {
	return foreman.Descriptor{
		foreman.ReadsEntities(),
		foreman.Writes[Position](),
		foreman.Writes[Velocity](),
		foreman.Reads[Ball](),
		foreman.Reads[Table](),
		foreman.ExpectsResource[Collisions](),
	}
}

func (collision) Run(s *foreman.Scope) error {
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
	balls, err := foreman.ReadComponents[Ball](s)
	if err != nil {
		return err
	}
	tables, err := foreman.ReadComponents[Table](s)
	if err != nil {
		return err
	}
	col, err := foreman.ReadResource[Collisions](s)
	if err != nil {
		return err
	}

	p, v, b := pos.View(), vel.View(), balls.View()
	pm, vm := pos.Mut(), vel.Mut()

	t := tables.View()
	for i := range foreman.Join(t).All() {
		table := t.At(i)
		for j := range foreman.Join(p, v, b).All() {
			np, nv := tableBounce(p.At(j), v.At(j), b.At(j), table)
			if np != p.At(j) {
				*pm.At(j) = np
			}
			if nv != v.At(j) {
				*vm.At(j) = nv
			}
		}
		break
	}

	var bodies []body
	for i := range foreman.Join(p, v, b).All() {
		bodies = append(bodies, body{index: i, pos: p.At(i), vel: v.At(i), ball: b.At(i)})
	}
	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			a, c := bodies[i], bodies[j]
			jx, jy, ok := contactImpulse(a, c)
			if !ok {
				continue
			}
			va, vc := vm.At(a.index), vm.At(c.index)
			va.X += jx / a.ball.Mass
			va.Y += jy / a.ball.Mass
			vc.X -= jx / c.ball.Mass
			vc.Y -= jy / c.ball.Mass
			if col.Events != nil {
				col.Events.Write(Collision{
					A:       ents.At(a.index),
					B:       ents.At(c.index),
					Impulse: float32(math.Hypot(float64(jx), float64(jy))),
				})
			}
		}
	}
	return nil
}

// body is a ball's state at the start of contact resolution.
type body struct {
	index uint32
	pos   Position
	vel   Velocity
	ball  Ball
}

// tableBounce clamps a ball inside the cushions and reflects the velocity
// component that hit them, damped by the ball's restitution.
func tableBounce(p Position, v Velocity, b Ball, t Table) (Position, Velocity) {
	if p.X-b.Radius < 0 {
		p.X = b.Radius
		v.X = -v.X * b.Restitution
	}
	if p.X+b.Radius > t.Width {
		p.X = t.Width - b.Radius
		v.X = -v.X * b.Restitution
	}
	if p.Y-b.Radius < 0 {
		p.Y = b.Radius
		v.Y = -v.Y * b.Restitution
	}
	if p.Y+b.Radius > t.Height {
		p.Y = t.Height - b.Radius
		v.Y = -v.Y * b.Restitution
	}
	return p, v
}

// contactImpulse returns the impulse a receives from c, or false when the
// balls do not touch, sit exactly on top of each other or already separate.
// The restitution used is the smaller of the two.
func contactImpulse(a, c body) (float32, float32, bool) {
	dx, dy := c.pos.X-a.pos.X, c.pos.Y-a.pos.Y
	distSq := dx*dx + dy*dy
	reach := a.ball.Radius + c.ball.Radius
	if distSq >= reach*reach || distSq == 0 {
		return 0, 0, false
	}

	dist := float32(math.Sqrt(float64(distSq)))
	nx, ny := dx/dist, dy/dist
	// closing is negative while the balls approach each other. Overlapping
	// balls that already separate get no impulse, so a resolved contact is
	// not pushed back together on the next step.
	closing := (c.vel.X-a.vel.X)*nx + (c.vel.Y-a.vel.Y)*ny
	if closing > 0 {
		return 0, 0, false
	}

	e := min(a.ball.Restitution, c.ball.Restitution)
	mag := -(1 + e) * closing / (1/a.ball.Mass + 1/c.ball.Mass)
	return -mag * nx, -mag * ny, true
}

// logging reports ball positions, collisions and how many balls moved.
type logging struct {
	logger     *slog.Logger
	moves      foreman.ReaderID
	collisions foreman.ReaderID
}

func (*logging) Access() foreman.Descriptor {
	return foreman.Descriptor{
		foreman.Reads[Position](),
		foreman.Reads[Ball](),
		foreman.ExpectsResource[Collisions](),
	}
}

func (l *logging) Setup(w *foreman.World) error {
	return w.Exec(func(s *foreman.Scope) error {
		pos, err := foreman.ReadComponents[Position](s)
		if err != nil {
			return err
		}
		events, err := pos.Events()
		if err != nil {
			return err
		}
		col, err := foreman.ReadResource[Collisions](s)
		if err != nil {
			return err
		}
		if col.Events == nil {
			return errors.New("collision channel is not initialized")
		}
		l.moves = events.Register()
		l.collisions = col.Events.Register()
		return nil
	})
}

func (l *logging) Run(s *foreman.Scope) error {
	pos, err := foreman.ReadComponents[Position](s)
	if err != nil {
		return err
	}
	balls, err := foreman.ReadComponents[Ball](s)
	if err != nil {
		return err
	}
	col, err := foreman.ReadResource[Collisions](s)
	if err != nil {
		return err
	}
	events, err := pos.Events()
	if err != nil {
		return err
	}

	changes, err := events.Read(l.moves)
	var lagged foreman.ReaderLaggedError
	if errors.As(err, &lagged) {
		l.logger.Warn("position log overflowed", "missed", lagged.Missed)
	} else if err != nil {
		return err
	}
	moved := make(map[uint32]struct{}, len(changes))
	for _, c := range changes {
		moved[c.Index] = struct{}{}
	}

	hits, err := col.Events.Read(l.collisions)
	if err != nil && !errors.As(err, &lagged) {
		return err
	}
	for _, hit := range hits {
		l.logger.Info("collision", "a", hit.A, "b", hit.B, "impulse", hit.Impulse)
	}

	p, b := pos.View(), balls.View()
	for i := range foreman.Join(p, b).All() {
		at := p.At(i)
		l.logger.Info("ball position", "x", round2(at.X), "y", round2(at.Y))
	}
	l.logger.Debug("step summary", "moved", len(moved), "collisions", len(hits))
	return nil
}

func round2(f float32) float64 {
	return math.Round(float64(f)*100) / 100
}

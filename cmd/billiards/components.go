package main

import (
	"time"

	"github.com/TheBitDrifter/foreman"
)

// Position is a ball's location on the table in centimetres. Changes are
// tracked so the log unit can report how many balls moved.
type Position struct {
	X, Y float32
}

func (Position) NewBackend() foreman.Backend[Position] {
	return foreman.FactoryNewFlagged(foreman.FactoryNewVec[Position]())
}

// Velocity is in centimetres per second.
type Velocity struct {
	X, Y float32
}

func (Velocity) NewBackend() foreman.Backend[Velocity] {
	return foreman.FactoryNewVec[Velocity]()
}

// Ball holds the physical properties of a ball.
type Ball struct {
	Radius      float32 // cm
	Mass        float32 // g
	Restitution float32
}

func (Ball) NewBackend() foreman.Backend[Ball] {
	return foreman.FactoryNewVec[Ball]()
}

// Table is the playing surface. Only one entity carries it.
type Table struct {
	Width, Height float32
}

// TimeDelta is the simulation step.
type TimeDelta struct {
	DT time.Duration
}

// Collision is published whenever two balls exchange an impulse.
type Collision struct {
	A, B    foreman.Entity
	Impulse float32
}

// Collisions is the world's collision event stream.
type Collisions struct {
	Events *foreman.Channel[Collision]
}

// ball is the marker kind of saved balls.
type ball struct{}

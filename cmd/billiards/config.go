package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the simulation setup loaded from YAML.
type Config struct {
	DT          float32           `yaml:"dt"`
	Table       TableConfig       `yaml:"table"`
	Ball        BallConfig        `yaml:"ball"`
	CueBall     CueBallConfig     `yaml:"cue_ball"`
	ObjectBalls ObjectBallsConfig `yaml:"object_balls"`
}

type TableConfig struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// BallConfig is shared by the cue ball and the object balls.
type BallConfig struct {
	Radius      float32 `yaml:"radius"`
	Mass        float32 `yaml:"mass"`
	Restitution float32 `yaml:"restitution"`
}

// CueBallConfig places the cue ball. VX and VY are in metres per second.
type CueBallConfig struct {
	X  float32 `yaml:"x"`
	Y  float32 `yaml:"y"`
	VX float32 `yaml:"vx"`
	VY float32 `yaml:"vy"`
}

type ObjectBallsConfig struct {
	Positions []PositionConfig `yaml:"positions"`
}

type PositionConfig struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

// LoadConfig reads and validates the YAML file at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DT <= 0 {
		errs = append(errs, errors.New("dt must be positive"))
	}
	if c.Table.Width <= 0 || c.Table.Height <= 0 {
		errs = append(errs, errors.New("table dimensions must be positive"))
	}
	if c.Ball.Radius <= 0 || c.Ball.Mass <= 0 {
		errs = append(errs, errors.New("ball radius and mass must be positive"))
	}
	if c.Ball.Restitution < 0 || c.Ball.Restitution > 1 {
		errs = append(errs, errors.New("ball restitution must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

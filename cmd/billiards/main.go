// billiards simulates a break shot on a pool table. Build:
//
//	go build -o billiards ./cmd/billiards
//
// Usage:
//
//	./billiards [-config config.yaml] [-steps 10] [-workers 0] [-save snap.msgpack] [-load snap.msgpack] [-v]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/foreman"
)

type options struct {
	config  string
	steps   int
	workers int
	save    string
	load    string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "config.yaml", "Path to the YAML simulation config")
	flag.IntVar(&opts.steps, "steps", 10, "Number of time steps to simulate")
	flag.IntVar(&opts.workers, "workers", 0, "Worker pool size (0 uses GOMAXPROCS)")
	flag.StringVar(&opts.save, "save", "", "Write a snapshot of every ball to this file after the run")
	flag.StringVar(&opts.load, "load", "", "Restore balls from a snapshot instead of the config")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := bark.LevelInfo
	if *verbose {
		level = bark.LevelDebug
	}
	bark.Wake(bark.Config{Environment: "development", Level: level})
	logger := bark.For("billiards")
	foreman.Config.SetLogger(bark.For("foreman"))

	if err := run(logger, opts); err != nil {
		var panicked foreman.SystemPanicError
		if errors.As(err, &panicked) {
			for _, frame := range panicked.Trace.Frames {
				logger.Debug("panic frame", "unit", panicked.Unit, "at", frame.String())
			}
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newDispatcher(logger *slog.Logger, workers int) (*foreman.Dispatcher, error) {
	return foreman.Factory.NewBuilder().
		WithWorkers(workers).
		With(physics{}, "physics").
		With(collision{}, "collision", "physics").
		WithTail(&logging{logger: logger}, "logging").
		Build()
}

func run(logger *slog.Logger, opts options) error {
	cfg, err := LoadConfig(opts.config)
	if err != nil {
		return err
	}
	logger.Info("loaded configuration", "config", cfg)

	world := foreman.Factory.NewWorld()
	foreman.InsertResource(world, TimeDelta{DT: time.Duration(float64(cfg.DT) * float64(time.Second))})
	foreman.InsertResource(world, Collisions{Events: foreman.FactoryNewChannel[Collision]()})

	dispatcher, err := newDispatcher(logger, opts.workers)
	if err != nil {
		return err
	}
	defer dispatcher.Close()
	if err := dispatcher.Setup(world); err != nil {
		return err
	}

	if _, err := spawnTable(world, cfg); err != nil {
		return err
	}
	var balls []foreman.Entity
	if opts.load != "" {
		data, err := os.ReadFile(opts.load)
		if err != nil {
			return err
		}
		if balls, err = restoreBalls(world, data); err != nil {
			return err
		}
	} else if balls, err = spawnBalls(world, cfg); err != nil {
		return err
	}
	logger.Info("table set", "balls", len(balls))
	if err := world.Maintain(); err != nil {
		return err
	}

	for step := range opts.steps {
		logger.Info("time step", "step", step)
		if err := dispatcher.Dispatch(world); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if err := world.Maintain(); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
	}

	if opts.save != "" {
		data, err := snapshotBalls(world)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.save, data, 0o644); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", opts.save, "bytes", len(data))
	}
	return nil
}

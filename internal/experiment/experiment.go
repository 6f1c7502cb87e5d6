// Package experiment assembles headless simulations from a configuration.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/config"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/sim"
)

type Options struct {
	// SampleEvery is the metric sampling interval in frames.
	SampleEvery int
	ToggleEvery int
	// Metrics disables metric recording when false.
	Metrics bool
	// Renderer, when set, draws every frame from the shared buffer.
	Renderer sim.Renderer
}

// Experiment is a headless simulation: a memory-backed render buffer, a
// CPU backend and the configured GPU backend sharing it.
type Experiment struct {
	cfg     *config.Config
	buf     *interop.MemoryBuffer
	context *sim.Context
}

func New(cfg *config.Config, reg *Registry, opts Options) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buf := interop.NewMemoryBuffer(cfg.Particles)
	cpu := compute.NewCPUBackend(buf, cfg.ComputeOptions())

	gpu, err := reg.GetBackend(cfg.Kind(), cfg, buf)
	if err != nil {
		if !errors.Is(err, compute.ErrUnavailable) || cfg.InitialMode() == sim.ModeGPU {
			cpu.Cleanup()
			return nil, fmt.Errorf("%s backend: %w", cfg.Kind(), err)
		}
		logging.Named("experiment").Warn("gpu backend unavailable, running on cpu only", zap.Error(err))
		gpu = nil
	}

	simOpts := cfg.SimOptions()
	simOpts.Render = opts.Renderer != nil
	simOpts.SampleEvery = opts.SampleEvery
	simOpts.ToggleEvery = opts.ToggleEvery

	c, err := sim.New(cpu, gpu, buf, opts.Renderer, cfg.InitialState(), simOpts)
	if err != nil {
		cpu.Cleanup()
		if gpu != nil {
			gpu.Cleanup()
		}
		return nil, err
	}
	if opts.Metrics {
		for _, m := range reg.DefaultMetrics(cfg) {
			c.AddMetric(m)
		}
	}
	return &Experiment{cfg: cfg, buf: buf, context: c}, nil
}

func (e *Experiment) Run(ctx context.Context, frames int) (*sim.Result, error) {
	return e.context.Run(ctx, frames)
}

func (e *Experiment) Context() *sim.Context  { return e.context }
func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Close()                 { e.context.Close() }

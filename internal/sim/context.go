package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/particle"
	"go.uber.org/zap"
)

// Context owns everything a running simulation needs: both backends, the
// render buffer, the renderer and the frame counters. Exactly one backend
// is authoritative at a time and only Toggle changes which.
//
// A Context is driven from a single goroutine; GPU backends additionally
// require that goroutine to own the graphics context.
type Context struct {
	backends [2]compute.Backend
	active   Mode
	buf      interop.Buffer
	renderer Renderer
	render   bool
	dt       float32

	frame    uint64
	time     float64
	switches int

	host        particle.State
	observers   []Observer
	metrics     []Metric
	sampleEvery int
	toggleEvery int
	samples     []Sample

	log    *zap.Logger
	closed bool
}

// New builds a context and makes the backend for opts.Mode authoritative
// with the initial state. gpu may be nil for a CPU-only context; renderer
// may be nil for headless runs.
func New(cpu, gpu compute.Backend, buf interop.Buffer, renderer Renderer, initial particle.State, opts Options) (*Context, error) {
	if cpu == nil {
		return nil, fmt.Errorf("sim: cpu backend is required")
	}
	if opts.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", opts.Dt)
	}
	if opts.Mode != ModeCPU && opts.Mode != ModeGPU {
		return nil, fmt.Errorf("sim: unknown %s", opts.Mode)
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	if buf.Len() != len(initial) {
		return nil, fmt.Errorf("render buffer holds %d particles, state has %d: %w", buf.Len(), len(initial), compute.ErrSize)
	}

	c := &Context{
		backends:    [2]compute.Backend{cpu, gpu},
		active:      opts.Mode,
		buf:         buf,
		renderer:    renderer,
		render:      opts.Render && renderer != nil,
		dt:          opts.Dt,
		host:        particle.New(len(initial)),
		sampleEvery: opts.SampleEvery,
		toggleEvery: opts.ToggleEvery,
		log:         logging.Named("sim"),
	}
	if c.active == ModeGPU && gpu == nil {
		return nil, ErrNoGPU
	}
	if err := c.Active().Upload(initial); err != nil {
		return nil, fmt.Errorf("upload initial state to %s: %w", c.Active().Name(), err)
	}
	c.log.Info("simulation ready",
		zap.Int("particles", len(initial)),
		zap.Stringer("mode", c.active),
		zap.String("backend", c.Active().Name()),
	)
	return c, nil
}

func (c *Context) Mode() Mode              { return c.active }
func (c *Context) Active() compute.Backend { return c.backends[c.active] }
func (c *Context) Buffer() interop.Buffer  { return c.buf }
func (c *Context) Len() int                { return c.buf.Len() }
func (c *Context) Rendering() bool         { return c.render }
func (c *Context) Frames() uint64          { return c.frame }
func (c *Context) Time() float64           { return c.time }
func (c *Context) Switches() int           { return c.switches }
func (c *Context) Dt() float32             { return c.dt }
func (c *Context) HasGPU() bool            { return c.backends[ModeGPU] != nil }
func (c *Context) AddObserver(o Observer)  { c.observers = append(c.observers, o) }
func (c *Context) AddMetric(m Metric)      { c.metrics = append(c.metrics, m) }
func (c *Context) Samples() []Sample       { return c.samples }

// Frame runs exactly one step on the active backend and, when rendering is
// enabled, draws the buffer of record once.
func (c *Context) Frame(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	b := c.Active()
	stats := FrameStats{Frame: c.frame + 1, Mode: c.active, Backend: b.Name()}

	start := time.Now()
	if err := b.Step(ctx, c.dt); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return c.fail("step", err)
	}
	stats.Step = time.Since(start)

	c.frame++
	c.time += float64(c.dt)
	stats.Time = c.time

	if c.render {
		start = time.Now()
		if err := c.renderer.Draw(c.buf, c.buf.Len()); err != nil {
			return c.fail("draw", err)
		}
		stats.Draw = time.Since(start)
		stats.Rendered = true
	}

	for _, o := range c.observers {
		o.OnFrame(stats)
	}
	if c.sampleEvery > 0 && c.frame%uint64(c.sampleEvery) == 0 {
		if err := c.sample(stats); err != nil {
			return c.fail("sample", err)
		}
	}
	return nil
}

func (c *Context) fail(phase string, err error) error {
	fe := &FrameError{Frame: c.frame + 1, Time: c.time, Phase: phase, Backend: c.Active().Name(), Err: err}
	c.log.Error("frame failed", zap.Error(fe))
	return fe
}

// Toggle hands authority to the other backend: the current backend is
// drained into host memory and the other backend is loaded from it.
func (c *Context) Toggle() error {
	if c.closed {
		return ErrClosed
	}
	next := c.active.Other()
	if c.backends[next] == nil {
		return ErrNoGPU
	}
	from, to := c.Active(), c.backends[next]

	start := time.Now()
	if err := from.Download(c.host); err != nil {
		return fmt.Errorf("hand-off download from %s: %w", from.Name(), err)
	}
	if err := to.Upload(c.host); err != nil {
		return fmt.Errorf("hand-off upload to %s: %w", to.Name(), err)
	}
	c.active = next
	c.switches++

	c.log.Info("backend switched",
		zap.String("from", from.Name()),
		zap.String("to", to.Name()),
		zap.Int("particles", len(c.host)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// ToggleRender flips drawing on or off and reports the new setting.
func (c *Context) ToggleRender() bool {
	if c.renderer == nil {
		return false
	}
	c.render = !c.render
	c.log.Debug("render toggled", zap.Bool("render", c.render))
	return c.render
}

// Snapshot copies the authoritative state into dst.
func (c *Context) Snapshot(dst particle.State) error {
	if c.closed {
		return ErrClosed
	}
	return c.Active().Download(dst)
}

func (c *Context) sample(stats FrameStats) error {
	if err := c.Snapshot(c.host); err != nil {
		return err
	}
	s := Sample{Frame: stats.Frame, Time: stats.Time, Mode: stats.Mode, Step: stats.Step, Values: make(map[string]float64, len(c.metrics))}
	for _, m := range c.metrics {
		m.Observe(c.host, stats.Time)
		s.Values[m.Name()] = m.Value()
	}
	c.samples = append(c.samples, s)
	return nil
}

// Close releases both backends.
func (c *Context) Close() {
	if c.closed {
		return
	}
	for _, b := range c.backends {
		if b != nil {
			b.Cleanup()
		}
	}
	c.closed = true
}

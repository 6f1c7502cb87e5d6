package compute

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
)

// parallelThreshold is the particle count below which a step runs on the
// calling goroutine.
const parallelThreshold = 2048

// CPUBackend keeps the authoritative state in host memory and re-uploads
// the render buffer after every step.
type CPUBackend struct {
	gravity  physics.Gravity
	substeps int
	workers  int

	state   particle.State
	scratch []float32
	buf     interop.Buffer
	dirty   bool
}

func NewCPUBackend(buf interop.Buffer, opts Options) *CPUBackend {
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	n := buf.Len()
	return &CPUBackend{
		gravity:  opts.Gravity,
		substeps: opts.substeps(),
		workers:  workers,
		state:    particle.New(n),
		scratch:  make([]float32, n*particle.FloatsPerParticle),
		buf:      buf,
	}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Kind() Kind      { return KindCPU }
func (c *CPUBackend) Available() bool { return c.state != nil }
func (c *CPUBackend) Len() int        { return len(c.state) }

func (c *CPUBackend) Cleanup() {
	c.state = nil
	c.scratch = nil
}

func (c *CPUBackend) Upload(src particle.State) error {
	if c.state == nil {
		return ErrReleased
	}
	if err := checkLen(len(c.state), src); err != nil {
		return err
	}
	copy(c.state, src)
	c.dirty = true
	return c.sync()
}

func (c *CPUBackend) Download(dst particle.State) error {
	if c.state == nil {
		return ErrReleased
	}
	if err := checkLen(len(c.state), dst); err != nil {
		return err
	}
	copy(dst, c.state)
	return nil
}

func (c *CPUBackend) Step(ctx context.Context, dt float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.state == nil {
		return ErrReleased
	}

	h := dt / float32(c.substeps)
	for i := 0; i < c.substeps; i++ {
		if len(c.state) < parallelThreshold || c.workers == 1 {
			c.gravity.Advance(c.state, h)
		} else {
			c.advanceParallel(h)
		}
	}
	c.dirty = true
	return c.sync()
}

func (c *CPUBackend) advanceParallel(dt float32) {
	n := len(c.state)
	chunkSize := (n + c.workers - 1) / c.workers

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		start := w * chunkSize
		if start >= n {
			break
		}
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(part []particle.Particle) {
			defer wg.Done()
			c.gravity.Advance(part, dt)
		}(c.state[start:end])
	}
	wg.Wait()
}

// sync pushes the host state into the render buffer when it has changed.
func (c *CPUBackend) sync() error {
	if !c.dirty {
		return nil
	}
	if err := c.state.Flatten(c.scratch); err != nil {
		return err
	}
	if err := c.buf.Upload(c.scratch); err != nil {
		return &DeviceError{Op: "upload render buffer", Status: -1, Err: err}
	}
	c.dirty = false
	return nil
}

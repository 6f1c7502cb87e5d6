package compute

import (
	"context"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/particle"
	"go.uber.org/zap"
)

// Kernel is a general-purpose compute device running the orbit kernel over
// a buffer it shares with the graphics API.
type Kernel interface {
	interop.Device
	Name() string
	// SetTimeStep binds the per-dispatch time step argument.
	SetTimeStep(dt float32) error
	// Enqueue schedules one pass of the kernel over n particles.
	Enqueue(n int) error
	// Finish blocks until every enqueued pass has completed.
	Finish() error
	Release()
}

// KernelBackend drives a Kernel through an interop.Bridge. Each frame is
// split into Substeps sequential passes of dt/Substeps; the device is
// drained after every pass.
type KernelBackend struct {
	kernel   Kernel
	bridge   *interop.Bridge
	n        int
	substeps int
	scratch  []float32
	log      *zap.Logger
}

// NewKernelBackend takes ownership of k; k is released when the backend
// cannot be built.
func NewKernelBackend(k Kernel, gfx interop.Graphics, buf interop.Buffer, opts Options) (*KernelBackend, error) {
	if k == nil {
		return nil, ErrUnavailable
	}
	substeps := opts.Substeps
	if substeps == 0 {
		substeps = DefaultKernelSubsteps
	}
	if substeps < 0 {
		k.Release()
		return nil, &ConfigError{Resource: "substeps", Reason: "must be positive"}
	}
	n := buf.Len()
	return &KernelBackend{
		kernel:   k,
		bridge:   interop.NewBridge(gfx, k, buf),
		n:        n,
		substeps: substeps,
		scratch:  make([]float32, n*particle.FloatsPerParticle),
		log:      logging.Named("compute"),
	}, nil
}

func (b *KernelBackend) Name() string    { return "kernel (" + b.kernel.Name() + ")" }
func (b *KernelBackend) Kind() Kind      { return KindKernel }
func (b *KernelBackend) Available() bool { return b.bridge != nil }
func (b *KernelBackend) Len() int        { return b.n }

// Bridge exposes the ownership state of the shared buffer.
func (b *KernelBackend) Bridge() *interop.Bridge { return b.bridge }

func (b *KernelBackend) Step(ctx context.Context, dt float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.bridge == nil {
		return ErrReleased
	}

	h := dt / float32(b.substeps)
	return b.bridge.Do(func() error {
		if err := b.kernel.SetTimeStep(h); err != nil {
			return err
		}
		for i := 0; i < b.substeps; i++ {
			if err := b.kernel.Enqueue(b.n); err != nil {
				return err
			}
			if err := b.kernel.Finish(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Download reads the shared buffer back. The bridge guarantees the device
// is not holding the buffer, so every pass of the last step is complete.
func (b *KernelBackend) Download(dst particle.State) error {
	if b.bridge == nil {
		return ErrReleased
	}
	if err := checkLen(b.n, dst); err != nil {
		return err
	}
	if err := b.bridge.Download(b.scratch); err != nil {
		return err
	}
	return dst.Unflatten(b.scratch)
}

func (b *KernelBackend) Upload(src particle.State) error {
	if b.bridge == nil {
		return ErrReleased
	}
	if err := checkLen(b.n, src); err != nil {
		return err
	}
	if err := src.Flatten(b.scratch); err != nil {
		return err
	}
	return b.bridge.Upload(b.scratch)
}

func (b *KernelBackend) Cleanup() {
	if b.bridge == nil {
		return
	}
	b.kernel.Release()
	b.bridge = nil
	b.log.Debug("kernel backend released")
}

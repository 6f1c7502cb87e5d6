package compute

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
)

type Kind string

const (
	KindCPU    Kind = "cpu"
	KindKernel Kind = "kernel"
	KindShader Kind = "shader"
)

func (k Kind) String() string { return string(k) }

// GPU reports whether the backend kind runs on a graphics device.
func (k Kind) GPU() bool { return k == KindKernel || k == KindShader }

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCPU, KindKernel, KindShader:
		return k, nil
	default:
		return "", &ConfigError{Resource: "backend", Reason: fmt.Sprintf("unknown backend %q (want cpu, kernel or shader)", s)}
	}
}

func Kinds() []Kind {
	return []Kind{KindCPU, KindKernel, KindShader}
}

// Backend advances the authoritative particle state by one frame.
//
// Exactly one backend is authoritative at a time. Download drains any
// in-flight work and copies the authoritative state to host memory; Upload
// makes the backend authoritative from a host state. Switching backends is
// always old.Download followed by new.Upload.
type Backend interface {
	Name() string
	Kind() Kind
	Available() bool
	Len() int
	Upload(src particle.State) error
	Download(dst particle.State) error
	// Step advances every particle by dt. ctx is only checked before any
	// work is issued; a started step always runs to completion.
	Step(ctx context.Context, dt float32) error
	Cleanup()
}

// Options are shared by every backend.
type Options struct {
	Gravity physics.Gravity
	// Substeps splits one frame into sequential steps of dt/Substeps.
	Substeps int
	// WorkGroupSize is the compute shader local size; the particle count
	// must be a multiple of it.
	WorkGroupSize int
	// Workers bounds CPU parallelism. Zero means runtime.NumCPU().
	Workers int
}

const (
	DefaultKernelSubsteps = 4
	DefaultWorkGroupSize  = 1024
)

func DefaultOptions() Options {
	return Options{
		Gravity:       physics.NewGravity(physics.DefaultG, physics.DefaultM),
		Substeps:      1,
		WorkGroupSize: DefaultWorkGroupSize,
		Workers:       runtime.NumCPU(),
	}
}

func (o Options) substeps() int {
	if o.Substeps < 1 {
		return 1
	}
	return o.Substeps
}

func checkLen(want int, s particle.State) error {
	if len(s) != want {
		return fmt.Errorf("%d particles, backend holds %d: %w", len(s), want, ErrSize)
	}
	return nil
}

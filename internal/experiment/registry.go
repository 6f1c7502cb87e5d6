package experiment

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/config"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/metrics"
	"github.com/san-kum/orbits/internal/sim"
)

// Factory builds a GPU backend over buf for a headless run.
type Factory func(cfg *config.Config, buf interop.Buffer) (compute.Backend, error)

type Registry struct {
	backends map[compute.Kind]Factory
}

// NewRegistry registers the headless GPU backends. The kernel backend
// uses OpenCL when the binary was built with it and a device exists;
// otherwise, when allowHost is set, it falls back to the host kernel. The
// shader backend needs a window, so headless runs execute its pipeline on
// the host.
func NewRegistry(allowHost bool) *Registry {
	r := &Registry{backends: make(map[compute.Kind]Factory)}

	r.backends[compute.KindKernel] = func(cfg *config.Config, buf interop.Buffer) (compute.Backend, error) {
		opts := cfg.ComputeOptions()
		k, err := openclKernel(cfg)
		if err != nil {
			if !allowHost || !errors.Is(err, compute.ErrUnavailable) {
				return nil, err
			}
			logging.Named("experiment").Warn("opencl unavailable, using host kernel", zap.Error(err))
			k = compute.NewHostKernel(opts.Gravity, cfg.Particles)
		}
		b, err := compute.NewKernelBackend(k, interop.NopGraphics{}, buf, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	r.backends[compute.KindShader] = func(cfg *config.Config, buf interop.Buffer) (compute.Backend, error) {
		if !allowHost {
			return nil, fmt.Errorf("shader backend needs a window: %w", compute.ErrUnavailable)
		}
		opts := cfg.ComputeOptions()
		b, err := compute.NewShaderBackend(compute.NewHostPipeline(opts.Gravity, opts.WorkGroupSize), buf, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	return r
}

func openclKernel(cfg *config.Config) (compute.Kernel, error) {
	if !compute.OpenCLAvailable() {
		return nil, compute.ErrUnavailable
	}
	source := compute.KernelSource
	if cfg.KernelPath != "" {
		data, err := os.ReadFile(cfg.KernelPath)
		if err != nil {
			return nil, fmt.Errorf("kernel source: %w", err)
		}
		source = string(data)
	}
	return compute.NewOpenCLKernel(cfg.GravityModel(), cfg.Particles, source)
}

// Register replaces the factory for kind.
func (r *Registry) Register(kind compute.Kind, f Factory) {
	r.backends[kind] = f
}

// GetBackend builds the GPU backend for kind. KindCPU has no GPU side and
// returns nil.
func (r *Registry) GetBackend(kind compute.Kind, cfg *config.Config, buf interop.Buffer) (compute.Backend, error) {
	if kind == compute.KindCPU {
		return nil, nil
	}
	fn, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", kind)
	}
	return fn(cfg, buf)
}

func (r *Registry) ListBackends() []string {
	names := []string{string(compute.KindCPU)}
	for kind := range r.backends {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics is the metric set recorded for a configuration. Particles
// farther than ten times the outer radius count as escaped.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	return metrics.Standard(cfg.GravityModel(), 10*cfg.MaxRadius)
}

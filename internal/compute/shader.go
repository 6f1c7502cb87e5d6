package compute

import (
	"context"
	"fmt"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
)

// StorageBinding is the shader storage binding point of the particle buffer.
const StorageBinding uint32 = 0

// Pipeline is a compute stage of the graphics API operating directly on
// the render buffer.
type Pipeline interface {
	Name() string
	Bind(buf interop.Buffer, binding uint32) error
	// SetTimeScale sets the timeScale uniform.
	SetTimeScale(dt float32) error
	Dispatch(groups int) error
	// Barrier makes storage writes visible to later vertex reads and the
	// next dispatch, and waits for earlier vertex reads.
	Barrier() error
	Release()
}

// ShaderBackend runs the orbit compute shader in N/WorkGroupSize groups.
type ShaderBackend struct {
	pipe          Pipeline
	buf           interop.Buffer
	n             int
	workGroupSize int
	substeps      int
	scratch       []float32
}

// NewShaderBackend fails with a ConfigError when the particle count is not
// a multiple of the work group size. It takes ownership of p and releases
// it on failure.
func NewShaderBackend(p Pipeline, buf interop.Buffer, opts Options) (*ShaderBackend, error) {
	if p == nil {
		return nil, ErrUnavailable
	}
	n := buf.Len()
	if err := CheckWorkGroups(n, opts.WorkGroupSize); err != nil {
		p.Release()
		return nil, err
	}
	return &ShaderBackend{
		pipe:          p,
		buf:           buf,
		n:             n,
		workGroupSize: opts.WorkGroupSize,
		substeps:      opts.substeps(),
		scratch:       make([]float32, n*particle.FloatsPerParticle),
	}, nil
}

// CheckWorkGroups validates a particle count against a work group size.
func CheckWorkGroups(n, workGroupSize int) error {
	if workGroupSize <= 0 {
		return &ConfigError{Resource: "work group size", Reason: fmt.Sprintf("must be positive, got %d", workGroupSize)}
	}
	if n%workGroupSize != 0 {
		return &ConfigError{
			Resource: "particle count",
			Reason:   fmt.Sprintf("%d is not a multiple of work group size %d", n, workGroupSize),
		}
	}
	return nil
}

func (s *ShaderBackend) Name() string    { return "shader (" + s.pipe.Name() + ")" }
func (s *ShaderBackend) Kind() Kind      { return KindShader }
func (s *ShaderBackend) Available() bool { return s.buf != nil }
func (s *ShaderBackend) Len() int        { return s.n }

// Groups is the dispatch size for one pass.
func (s *ShaderBackend) Groups() int { return s.n / s.workGroupSize }

func (s *ShaderBackend) Step(ctx context.Context, dt float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.buf == nil {
		return ErrReleased
	}

	if err := s.pipe.Barrier(); err != nil {
		return err
	}
	if err := s.pipe.Bind(s.buf, StorageBinding); err != nil {
		return err
	}
	if err := s.pipe.SetTimeScale(dt / float32(s.substeps)); err != nil {
		return err
	}
	for i := 0; i < s.substeps; i++ {
		if err := s.pipe.Dispatch(s.Groups()); err != nil {
			return err
		}
		if err := s.pipe.Barrier(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShaderBackend) Download(dst particle.State) error {
	if s.buf == nil {
		return ErrReleased
	}
	if err := checkLen(s.n, dst); err != nil {
		return err
	}
	if err := s.pipe.Barrier(); err != nil {
		return err
	}
	if err := s.buf.Download(s.scratch); err != nil {
		return err
	}
	return dst.Unflatten(s.scratch)
}

func (s *ShaderBackend) Upload(src particle.State) error {
	if s.buf == nil {
		return ErrReleased
	}
	if err := checkLen(s.n, src); err != nil {
		return err
	}
	if err := src.Flatten(s.scratch); err != nil {
		return err
	}
	return s.buf.Upload(s.scratch)
}

func (s *ShaderBackend) Cleanup() {
	if s.buf == nil {
		return
	}
	s.pipe.Release()
	s.buf = nil
}

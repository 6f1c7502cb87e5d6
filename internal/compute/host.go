package compute

import (
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
)

// HostKernel is a Kernel that runs the orbit kernel on the host. It keeps
// its own device-side copy of the particles and moves data only on
// acquire and release, like a real device without buffer sharing.
type HostKernel struct {
	gravity physics.Gravity
	dt      float32
	dev     particle.State
	scratch []float32
	held    bool
}

func NewHostKernel(g physics.Gravity, n int) *HostKernel {
	return &HostKernel{
		gravity: g,
		dev:     particle.New(n),
		scratch: make([]float32, n*particle.FloatsPerParticle),
	}
}

func (k *HostKernel) Name() string { return "host" }

func (k *HostKernel) AcquireShared(buf interop.Buffer) error {
	if err := buf.Download(k.scratch); err != nil {
		return &DeviceError{Op: "acquire shared buffer", Status: -1, Err: err}
	}
	if err := k.dev.Unflatten(k.scratch); err != nil {
		return &DeviceError{Op: "acquire shared buffer", Status: -1, Err: err}
	}
	k.held = true
	return nil
}

func (k *HostKernel) ReleaseShared(buf interop.Buffer) error {
	if !k.held {
		return &DeviceError{Op: "release shared buffer", Status: -1, Err: interop.ErrOwnership}
	}
	if err := k.dev.Flatten(k.scratch); err != nil {
		return &DeviceError{Op: "release shared buffer", Status: -1, Err: err}
	}
	if err := buf.Upload(k.scratch); err != nil {
		return &DeviceError{Op: "release shared buffer", Status: -1, Err: err}
	}
	k.held = false
	return nil
}

func (k *HostKernel) SetTimeStep(dt float32) error {
	k.dt = dt
	return nil
}

func (k *HostKernel) Enqueue(n int) error {
	if !k.held {
		return &DeviceError{Op: "enqueue kernel", Status: -1, Err: interop.ErrOwnership}
	}
	if n > len(k.dev) {
		n = len(k.dev)
	}
	k.gravity.Advance(k.dev[:n], k.dt)
	return nil
}

func (k *HostKernel) Finish() error { return nil }

func (k *HostKernel) Release() {
	k.dev = nil
	k.scratch = nil
}

// HostPipeline is a Pipeline that runs the compute shader on the host,
// one work group of particles at a time.
type HostPipeline struct {
	gravity       physics.Gravity
	workGroupSize int
	timeScale     float32
	buf           interop.Buffer
	state         particle.State
	scratch       []float32
}

func NewHostPipeline(g physics.Gravity, workGroupSize int) *HostPipeline {
	return &HostPipeline{gravity: g, workGroupSize: workGroupSize}
}

func (p *HostPipeline) Name() string { return "host" }

func (p *HostPipeline) Bind(buf interop.Buffer, binding uint32) error {
	if binding != StorageBinding {
		return &DeviceError{Op: "bind storage buffer", Status: int(binding)}
	}
	p.buf = buf
	if len(p.state) != buf.Len() {
		p.state = particle.New(buf.Len())
		p.scratch = make([]float32, buf.Len()*particle.FloatsPerParticle)
	}
	return nil
}

func (p *HostPipeline) SetTimeScale(dt float32) error {
	p.timeScale = dt
	return nil
}

func (p *HostPipeline) Dispatch(groups int) error {
	if p.buf == nil {
		return &DeviceError{Op: "dispatch compute", Status: -1, Err: ErrReleased}
	}
	if err := p.buf.Download(p.scratch); err != nil {
		return &DeviceError{Op: "dispatch compute", Status: -1, Err: err}
	}
	if err := p.state.Unflatten(p.scratch); err != nil {
		return err
	}
	for g := 0; g < groups; g++ {
		start := g * p.workGroupSize
		end := start + p.workGroupSize
		if end > len(p.state) {
			end = len(p.state)
		}
		if start >= end {
			break
		}
		p.gravity.Advance(p.state[start:end], p.timeScale)
	}
	if err := p.state.Flatten(p.scratch); err != nil {
		return err
	}
	return p.buf.Upload(p.scratch)
}

func (p *HostPipeline) Barrier() error { return nil }

func (p *HostPipeline) Release() {
	p.buf = nil
	p.state = nil
	p.scratch = nil
}

package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/physics"
)

// ComputePipeline runs the orbit compute shader on a GL buffer bound as a
// shader storage buffer.
type ComputePipeline struct {
	Program   uint32
	timeScale int32
}

// NewComputePipeline compiles src for the given work group size and sets
// the gravity uniforms once.
func NewComputePipeline(src string, g physics.Gravity, workGroupSize int) (*ComputePipeline, error) {
	program, err := CompileCompute(WithWorkGroupSize(src, workGroupSize))
	if err != nil {
		return nil, err
	}
	locs, err := uniforms(program, "timeScale", "G", "M", "minDistance")
	if err != nil {
		gl.DeleteProgram(program)
		return nil, err
	}
	p := &ComputePipeline{Program: program, timeScale: locs[0]}

	gl.UseProgram(program)
	gl.Uniform1f(locs[1], g.G)
	gl.Uniform1f(locs[2], g.M)
	gl.Uniform1f(locs[3], g.MinDistance)
	gl.UseProgram(0)
	if err := checkError("set gravity uniforms"); err != nil {
		gl.DeleteProgram(program)
		return nil, err
	}
	return p, nil
}

func (p *ComputePipeline) Name() string { return "glsl" }

func (p *ComputePipeline) Bind(buf interop.Buffer, binding uint32) error {
	b, err := asBuffer(buf, "glBindBufferBase")
	if err != nil {
		return err
	}
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, binding, b.ID)
	return checkError("glBindBufferBase")
}

func (p *ComputePipeline) SetTimeScale(dt float32) error {
	gl.UseProgram(p.Program)
	gl.Uniform1f(p.timeScale, dt)
	return checkError("set timeScale")
}

func (p *ComputePipeline) Dispatch(groups int) error {
	gl.UseProgram(p.Program)
	gl.DispatchCompute(uint32(groups), 1, 1)
	return checkError("glDispatchCompute")
}

func (p *ComputePipeline) Barrier() error {
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT | gl.BUFFER_UPDATE_BARRIER_BIT)
	return checkError("glMemoryBarrier")
}

func (p *ComputePipeline) Release() {
	if p.Program != 0 {
		gl.DeleteProgram(p.Program)
		p.Program = 0
	}
}

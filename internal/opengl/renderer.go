package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/san-kum/orbits/internal/camera"
	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
)

// PointRenderer draws the particle buffer as GL_POINTS. Attribute 0 is the
// position and attribute 1 the velocity, both read with the particle stride.
type PointRenderer struct {
	Program    uint32
	VAO        uint32
	Camera     *camera.Camera
	PointSize  float32
	SpeedScale float32
	Aspect     float32

	buf        *Buffer
	projection int32
	view       int32
	pointSize  int32
	speedScale int32
}

func NewPointRenderer(vertSrc, fragSrc string, buf *Buffer, cam *camera.Camera) (*PointRenderer, error) {
	program, err := CompileProgram(vertSrc, fragSrc)
	if err != nil {
		return nil, err
	}
	locs, err := uniforms(program, "projectionMatrix", "viewMatrix", "pointSize", "speedScale")
	if err != nil {
		gl.DeleteProgram(program)
		return nil, err
	}
	position, err := attribute(program, "position")
	if err != nil {
		gl.DeleteProgram(program)
		return nil, err
	}
	velocity, err := attribute(program, "velocity")
	if err != nil {
		gl.DeleteProgram(program)
		return nil, err
	}

	r := &PointRenderer{
		Program:    program,
		Camera:     cam,
		PointSize:  1,
		SpeedScale: 100,
		Aspect:     16.0 / 9.0,
		buf:        buf,
		projection: locs[0],
		view:       locs[1],
		pointSize:  locs[2],
		speedScale: locs[3],
	}

	gl.GenVertexArrays(1, &r.VAO)
	gl.BindVertexArray(r.VAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, buf.ID)
	gl.VertexAttribPointerWithOffset(position, 3, gl.FLOAT, false, particle.Stride, 0)
	gl.EnableVertexAttribArray(position)
	gl.VertexAttribPointerWithOffset(velocity, 3, gl.FLOAT, false, particle.Stride, particle.VelocityOffset)
	gl.EnableVertexAttribArray(velocity)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := checkError("configure vertex array"); err != nil {
		r.Delete()
		return nil, err
	}
	return r, nil
}

// Draw renders n particles from buf, which must be the buffer the renderer
// was created with.
func (r *PointRenderer) Draw(buf interop.Buffer, n int) error {
	b, err := asBuffer(buf, "draw particles")
	if err != nil {
		return err
	}
	if b.ID != r.buf.ID {
		return &compute.DeviceError{Op: "draw particles", Status: -1, Err: fmt.Errorf("buffer %d is not the render buffer %d", b.ID, r.buf.ID)}
	}

	proj := r.Camera.Projection(r.Aspect)
	view := r.Camera.View()

	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Enable(gl.DEPTH_TEST)
	gl.UseProgram(r.Program)
	gl.UniformMatrix4fv(r.projection, 1, false, &proj[0])
	gl.UniformMatrix4fv(r.view, 1, false, &view[0])
	gl.Uniform1f(r.pointSize, r.PointSize)
	gl.Uniform1f(r.speedScale, r.SpeedScale)

	gl.BindVertexArray(r.VAO)
	gl.DrawArrays(gl.POINTS, 0, int32(n))
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.Disable(gl.DEPTH_TEST)
	return checkError("glDrawArrays")
}

func (r *PointRenderer) Delete() {
	if r.VAO != 0 {
		gl.DeleteVertexArrays(1, &r.VAO)
		r.VAO = 0
	}
	if r.Program != 0 {
		gl.DeleteProgram(r.Program)
		r.Program = 0
	}
}

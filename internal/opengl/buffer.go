package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
)

// Buffer is the particle buffer of record: a GL buffer object used as the
// vertex source for drawing and as the storage target for the compute
// backends.
type Buffer struct {
	ID uint32
	n  int
}

func NewBuffer(n int) (*Buffer, error) {
	b := &Buffer{n: n}
	gl.GenBuffers(1, &b.ID)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.ID)
	gl.BufferData(gl.ARRAY_BUFFER, n*particle.Stride, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := checkError("allocate particle buffer"); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Len() int { return b.n }

func (b *Buffer) Upload(src []float32) error {
	if len(src) != b.n*particle.FloatsPerParticle {
		return fmt.Errorf("upload %d floats into %d particles: %w", len(src), b.n, interop.ErrBufferSize)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.ID)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(src)*4, gl.Ptr(src))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("glBufferSubData")
}

func (b *Buffer) Download(dst []float32) error {
	if len(dst) != b.n*particle.FloatsPerParticle {
		return fmt.Errorf("download %d particles into %d floats: %w", b.n, len(dst), interop.ErrBufferSize)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.ID)
	gl.GetBufferSubData(gl.ARRAY_BUFFER, 0, len(dst)*4, gl.Ptr(dst))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return checkError("glGetBufferSubData")
}

func (b *Buffer) Delete() {
	if b.ID != 0 {
		gl.DeleteBuffers(1, &b.ID)
		b.ID = 0
	}
}

// Context is the graphics side of the interop protocol for the current GL
// context.
type Context struct{}

func (Context) Finish() error {
	gl.Finish()
	return checkError("glFinish")
}

func asBuffer(buf interop.Buffer, op string) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok {
		return nil, &compute.DeviceError{Op: op, Status: -1, Err: fmt.Errorf("%T is not a GL buffer", buf)}
	}
	return b, nil
}

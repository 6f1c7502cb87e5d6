package interop

import (
	"fmt"
	"sync"

	"github.com/san-kum/orbits/internal/particle"
)

// MemoryBuffer is a host-resident Buffer used for headless runs.
type MemoryBuffer struct {
	mu   sync.RWMutex
	data []float32
	n    int
}

func NewMemoryBuffer(n int) *MemoryBuffer {
	return &MemoryBuffer{data: make([]float32, n*particle.FloatsPerParticle), n: n}
}

func (m *MemoryBuffer) Len() int { return m.n }

func (m *MemoryBuffer) Upload(src []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(src) != len(m.data) {
		return fmt.Errorf("upload %d floats into %d: %w", len(src), len(m.data), ErrBufferSize)
	}
	copy(m.data, src)
	return nil
}

func (m *MemoryBuffer) Download(dst []float32) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(dst) != len(m.data) {
		return fmt.Errorf("download %d floats into %d: %w", len(m.data), len(dst), ErrBufferSize)
	}
	copy(dst, m.data)
	return nil
}

// NopGraphics is the graphics side of a headless run: there is never an
// outstanding draw to wait for.
type NopGraphics struct{}

func (NopGraphics) Finish() error { return nil }

// GraphicsFunc adapts a function to Graphics.
type GraphicsFunc func() error

func (f GraphicsFunc) Finish() error { return f() }

package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGPU is returned by Toggle when no GPU backend was configured.
	ErrNoGPU = errors.New("sim: no gpu backend configured")

	// ErrClosed is returned by a Context used after Close.
	ErrClosed = errors.New("sim: context closed")
)

// FrameError is a failure while producing a frame. Frame errors are fatal:
// the context does not retry and the state of the active backend is
// undefined afterwards.
type FrameError struct {
	Frame   uint64
	Time    float64
	Phase   string
	Backend string
	Err     error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d (t=%.4f) %s on %s: %v", e.Frame, e.Time, e.Phase, e.Backend, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

//go:build !opencl

package compute

import "github.com/san-kum/orbits/internal/physics"

// OpenCLAvailable reports whether OpenCL support was compiled in and a GPU
// device is present.
func OpenCLAvailable() bool { return false }

// ListDevices enumerates OpenCL devices. Without the opencl build tag there
// are none.
func ListDevices() ([]DeviceInfo, error) {
	return nil, ErrUnavailable
}

// NewOpenCLKernel builds the orbit kernel on the last GPU device found.
// Build with -tags opencl to enable it.
func NewOpenCLKernel(g physics.Gravity, n int, source string) (Kernel, error) {
	return nil, ErrUnavailable
}

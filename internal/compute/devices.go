package compute

import (
	_ "embed"
	"fmt"
)

// KernelSource is the OpenCL C source of the orbit kernel.
//
//go:embed kernels/orbit.cl
var KernelSource string

// KernelEntry is the kernel function name inside KernelSource.
const KernelEntry = "orbit_step"

// DeviceInfo describes one compute device found on the system.
type DeviceInfo struct {
	Platform         string
	Name             string
	Type             string
	ComputeUnits     int
	MaxWorkGroupSize int
	GlobalMemory     int64
	// Selected marks the device NewOpenCLKernel would use.
	Selected bool
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s / %s (%s, %d CUs, wg<=%d, %d MiB)",
		d.Platform, d.Name, d.Type, d.ComputeUnits, d.MaxWorkGroupSize, d.GlobalMemory>>20)
}

//go:build opencl

package compute

import (
	"errors"
	"sync"

	"github.com/jgillich/go-opencl/cl"
	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
	"go.uber.org/zap"
)

// OpenCLKernel runs the orbit kernel on an OpenCL GPU device. The binding
// has no GL sharing, so acquiring the shared buffer copies it into device
// memory and releasing copies it back.
type OpenCLKernel struct {
	device  *cl.Device
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernel  *cl.Kernel
	mem     *cl.MemObject
	host    []float32
	n       int
}

// OpenCLAvailable reports whether a usable device exists. The answer is
// computed once per process.
func OpenCLAvailable() bool { return openclAvailable() }

var openclAvailable = sync.OnceValue(func() bool {
	_, _, err := selectDevice()
	return err == nil
})

func ListDevices() ([]DeviceInfo, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, deviceError("clGetPlatformIDs", err)
	}
	_, selected, _ := selectDevice()

	var infos []DeviceInfo
	for _, p := range platforms {
		devices, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil && err != cl.ErrDeviceNotFound {
			return nil, deviceError("clGetDeviceIDs", err)
		}
		for _, d := range devices {
			infos = append(infos, DeviceInfo{
				Platform:         p.Name(),
				Name:             d.Name(),
				Type:             d.Type().String(),
				ComputeUnits:     d.MaxComputeUnits(),
				MaxWorkGroupSize: d.MaxWorkGroupSize(),
				GlobalMemory:     d.GlobalMemSize(),
				Selected:         d == selected,
			})
		}
	}
	return infos, nil
}

// selectDevice returns the last GPU device of the last platform that has one.
func selectDevice() (*cl.Platform, *cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, nil, deviceError("clGetPlatformIDs", err)
	}
	var (
		platform *cl.Platform
		device   *cl.Device
	)
	for _, p := range platforms {
		devices, err := p.GetDevices(cl.DeviceTypeGPU)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			platform = p
			device = devices[len(devices)-1]
		}
	}
	if device == nil {
		return nil, nil, ErrUnavailable
	}
	return platform, device, nil
}

func NewOpenCLKernel(g physics.Gravity, n int, source string) (Kernel, error) {
	_, device, err := selectDevice()
	if err != nil {
		return nil, err
	}
	log := logging.Named("compute")
	log.Info("opencl device selected", zap.String("device", device.Name()))

	k := &OpenCLKernel{device: device, n: n, host: make([]float32, n*particle.FloatsPerParticle)}

	k.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, deviceError("clCreateContext", err)
	}
	k.queue, err = k.context.CreateCommandQueue(device, 0)
	if err != nil {
		k.Release()
		return nil, deviceError("clCreateCommandQueue", err)
	}
	k.program, err = k.context.CreateProgramWithSource([]string{source})
	if err != nil {
		k.Release()
		return nil, deviceError("clCreateProgramWithSource", err)
	}
	if err := k.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		k.Release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, &DeviceError{Op: "clBuildProgram", Status: -11, Log: string(buildErr)}
		}
		return nil, deviceError("clBuildProgram", err)
	}
	k.kernel, err = k.program.CreateKernel(KernelEntry)
	if err != nil {
		k.Release()
		return nil, deviceError("clCreateKernel", err)
	}
	k.mem, err = k.context.CreateEmptyBuffer(cl.MemReadWrite, n*particle.Stride)
	if err != nil {
		k.Release()
		return nil, deviceError("clCreateBuffer", err)
	}
	if err := k.kernel.SetArgs(k.mem, float32(0), g.G, g.M, g.MinDistance, int32(n)); err != nil {
		k.Release()
		return nil, deviceError("clSetKernelArg", err)
	}
	return k, nil
}

func (k *OpenCLKernel) Name() string { return k.device.Name() }

func (k *OpenCLKernel) AcquireShared(buf interop.Buffer) error {
	if err := buf.Download(k.host); err != nil {
		return &DeviceError{Op: "acquire shared buffer", Status: -1, Err: err}
	}
	if _, err := k.queue.EnqueueWriteBufferFloat32(k.mem, true, 0, k.host, nil); err != nil {
		return deviceError("clEnqueueWriteBuffer", err)
	}
	return nil
}

func (k *OpenCLKernel) ReleaseShared(buf interop.Buffer) error {
	if _, err := k.queue.EnqueueReadBufferFloat32(k.mem, true, 0, k.host, nil); err != nil {
		return deviceError("clEnqueueReadBuffer", err)
	}
	if err := buf.Upload(k.host); err != nil {
		return &DeviceError{Op: "release shared buffer", Status: -1, Err: err}
	}
	return nil
}

func (k *OpenCLKernel) SetTimeStep(dt float32) error {
	if err := k.kernel.SetArgFloat32(1, dt); err != nil {
		return deviceError("clSetKernelArg", err)
	}
	return nil
}

func (k *OpenCLKernel) Enqueue(n int) error {
	if _, err := k.queue.EnqueueNDRangeKernel(k.kernel, nil, []int{n}, nil, nil); err != nil {
		return deviceError("clEnqueueNDRangeKernel", err)
	}
	return nil
}

func (k *OpenCLKernel) Finish() error {
	if err := k.queue.Finish(); err != nil {
		return deviceError("clFinish", err)
	}
	return nil
}

func (k *OpenCLKernel) Release() {
	if k.mem != nil {
		k.mem.Release()
		k.mem = nil
	}
	if k.kernel != nil {
		k.kernel.Release()
		k.kernel = nil
	}
	if k.program != nil {
		k.program.Release()
		k.program = nil
	}
	if k.queue != nil {
		k.queue.Release()
		k.queue = nil
	}
	if k.context != nil {
		k.context.Release()
		k.context = nil
	}
}

func deviceError(op string, err error) *DeviceError {
	status := -1
	var code cl.ErrOther
	if errors.As(err, &code) {
		status = int(code)
	}
	return &DeviceError{Op: op, Status: status, Err: err}
}

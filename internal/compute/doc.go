// Package compute provides the backends that advance the particle state.
//
// Three backends implement [Backend]:
//
//   - [CPUBackend]: host-resident state, parallel over worker goroutines,
//     re-uploads the render buffer after every step
//   - [KernelBackend]: a general-purpose GPU [Kernel] (OpenCL) that borrows
//     the render buffer through an [interop.Bridge] for every frame
//   - [ShaderBackend]: a compute-shader [Pipeline] writing the render buffer
//     in place between memory barriers
//
// # Switching backends
//
// Only one backend is authoritative. A switch is an explicit hand-off:
//
//	state := particle.New(old.Len())
//	if err := old.Download(state); err != nil {
//	    return err
//	}
//	if err := next.Upload(state); err != nil {
//	    return err
//	}
//
// # Devices
//
// The OpenCL kernel is compiled in with the opencl build tag:
//
//	go build -tags opencl ./cmd/orbits
//
// [HostKernel] and [HostPipeline] execute the same programs on the host.
// They keep the full device protocol (acquire, dispatch, finish, release)
// and back headless runs on machines without a GPU.
//
// Device failures are returned as [*DeviceError] and are never retried.
package compute

// Package particle defines the particle record shared by every compute
// backend and the renderer.
//
// A particle is two vec4 values, position then velocity, 32 bytes in total.
// The same interleaved layout is used by the host State, by the OpenCL
// kernel and by the compute shader, so a State converts to and from a flat
// []float32 without reordering:
//
//	buf := make([]float32, s.Floats())
//	_ = s.Flatten(buf)
//	_ = s.Unflatten(buf)
//
// Host slices and device memory never alias; moving data across that
// boundary is always an explicit copy.
package particle

// Package gui is the windowed front end: a raylib window whose GL context
// hosts the particle buffer, the point renderer and the GPU backends.
//
// Build with -tags opengl43 so raylib creates a 4.3 core context; the
// compute shader backend fails to compile on older contexts. The kernel
// backend additionally needs -tags opencl.
//
//	go build -tags opengl43,opencl ./cmd/orbits
package gui

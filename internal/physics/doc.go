// Package physics implements the integration rule for particles orbiting a
// fixed central attractor at the origin.
//
// Each step applies semi-implicit (symplectic) Euler in float32:
//
//	d     = -pos
//	r     = max(|d|, MinDistance)
//	force = G*M / r²
//	vel  += d * force*dt / r
//	pos  += vel * dt
//
// Particles do not interact with each other, so a step is embarrassingly
// parallel and every backend may evaluate particles in any order.
//
// # Distance clamp
//
// r is clamped to [Gravity.MinDistance] before the force is computed. A
// particle sitting exactly at the origin has d = 0 and therefore keeps its
// velocity unchanged; a particle inside the clamp radius receives a bounded
// acceleration of at most G*M/MinDistance². The OpenCL kernel and the compute
// shader apply the same clamp.
package physics

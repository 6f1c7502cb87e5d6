package particle

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// FloatsPerParticle is the number of float32 values one particle occupies
	// in a flat host or device buffer: pos.xyzw followed by vel.xyzw.
	FloatsPerParticle = 8

	// Stride is the byte size of one particle in a device buffer.
	Stride = FloatsPerParticle * 4

	// VelocityOffset is the byte offset of the velocity within one particle.
	VelocityOffset = 4 * 4
)

var (
	ErrLength     = errors.New("particle: buffer length does not match particle count")
	ErrNotFinite  = errors.New("particle: non-finite component (NaN or Inf)")
	ErrEmptyState = errors.New("particle: state has no particles")
)

// Particle is one point mass. The w components are padding and stay zero.
type Particle struct {
	Position mgl32.Vec4
	Velocity mgl32.Vec4
}

// Radius is the distance from the attractor at the origin.
func (p Particle) Radius() float32 {
	return p.Position.Vec3().Len()
}

// Speed is the magnitude of the velocity.
func (p Particle) Speed() float32 {
	return p.Velocity.Vec3().Len()
}

func (p Particle) IsValid() bool {
	for i := 0; i < 4; i++ {
		if !finite(p.Position[i]) || !finite(p.Velocity[i]) {
			return false
		}
	}
	return true
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// State is the full particle set. Its length is fixed for a run and the
// index of a particle is its identity.
type State []Particle

func New(n int) State {
	return make(State, n)
}

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Validate reports the first non-finite particle.
func (s State) Validate() error {
	if len(s) == 0 {
		return ErrEmptyState
	}
	for i, p := range s {
		if !p.IsValid() {
			return fmt.Errorf("particle %d: %w", i, ErrNotFinite)
		}
	}
	return nil
}

func (s State) IsValid() bool {
	return s.Validate() == nil
}

// Floats returns the size of the flat layout for this state.
func (s State) Floats() int {
	return len(s) * FloatsPerParticle
}

// Flatten writes the interleaved device layout into dst.
func (s State) Flatten(dst []float32) error {
	if len(dst) != s.Floats() {
		return fmt.Errorf("flatten %d particles into %d floats: %w", len(s), len(dst), ErrLength)
	}
	for i, p := range s {
		o := i * FloatsPerParticle
		copy(dst[o:o+4], p.Position[:])
		copy(dst[o+4:o+8], p.Velocity[:])
	}
	return nil
}

// Unflatten reads the interleaved device layout from src.
func (s State) Unflatten(src []float32) error {
	if len(src) != s.Floats() {
		return fmt.Errorf("unflatten %d floats into %d particles: %w", len(src), len(s), ErrLength)
	}
	for i := range s {
		o := i * FloatsPerParticle
		copy(s[i].Position[:], src[o:o+4])
		copy(s[i].Velocity[:], src[o+4:o+8])
	}
	return nil
}

// MaxRelativeDelta is the largest component difference between two states,
// relative to the magnitude of the reference component (absolute below 1).
func MaxRelativeDelta(ref, other State) float64 {
	if len(ref) != len(other) {
		return math.Inf(1)
	}
	worst := 0.0
	for i := range ref {
		a, b := ref[i], other[i]
		for k := 0; k < 4; k++ {
			worst = math.Max(worst, relDelta(a.Position[k], b.Position[k]))
			worst = math.Max(worst, relDelta(a.Velocity[k], b.Velocity[k]))
		}
	}
	return worst
}

func relDelta(a, b float32) float64 {
	d := math.Abs(float64(a) - float64(b))
	scale := math.Abs(float64(a))
	if scale < 1 {
		return d
	}
	return d / scale
}

// MeanRadius is the average distance from the origin.
func (s State) MeanRadius() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range s {
		sum += float64(p.Radius())
	}
	return sum / float64(len(s))
}

package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/orbits/internal/particle"
)

const (
	// DefaultG is the gravitational constant.
	DefaultG float32 = 6.67384e-11

	// DefaultM is the mass of the central attractor.
	DefaultM float32 = 10e4

	// DefaultMinDistance clamps r before the force is computed.
	DefaultMinDistance float32 = 1e-4
)

// Gravity is the central-attractor integration rule.
type Gravity struct {
	G           float32
	M           float32
	MinDistance float32
}

func NewGravity(g, m float32) Gravity {
	return Gravity{G: g, M: m, MinDistance: DefaultMinDistance}
}

func (g Gravity) Validate() error {
	if g.G <= 0 {
		return fmt.Errorf("gravitational constant must be positive, got %g", g.G)
	}
	if g.M <= 0 {
		return fmt.Errorf("attractor mass must be positive, got %g", g.M)
	}
	if g.MinDistance <= 0 {
		return fmt.Errorf("minimum distance must be positive, got %g", g.MinDistance)
	}
	return nil
}

// Apply advances a single particle by dt.
func (g Gravity) Apply(p *particle.Particle, dt float32) {
	d := p.Position.Mul(-1)
	r := d.Len()
	if r < g.MinDistance {
		r = g.MinDistance
	}
	force := g.G * g.M / (r * r)
	p.Velocity = p.Velocity.Add(d.Mul(force * dt / r))
	p.Position = p.Position.Add(p.Velocity.Mul(dt))
}

// Advance applies one step of dt to every particle in ps.
func (g Gravity) Advance(ps []particle.Particle, dt float32) {
	for i := range ps {
		g.Apply(&ps[i], dt)
	}
}

// Substep runs n sequential steps of dt/n. n < 1 is treated as 1.
func (g Gravity) Substep(ps []particle.Particle, dt float32, n int) {
	if n < 1 {
		n = 1
	}
	h := dt / float32(n)
	for i := 0; i < n; i++ {
		g.Advance(ps, h)
	}
}

// Acceleration is the magnitude of the clamped acceleration at distance r.
func (g Gravity) Acceleration(r float32) float32 {
	if r < g.MinDistance {
		r = g.MinDistance
	}
	return g.G * g.M / (r * r)
}

// CircularSpeed is the speed of a circular orbit of radius r.
func (g Gravity) CircularSpeed(r float32) float32 {
	return float32(math.Sqrt(float64(g.G * g.M / r)))
}

// SpecificEnergy is the orbital energy per unit mass of p.
func (g Gravity) SpecificEnergy(p particle.Particle) float64 {
	r := float64(p.Radius())
	if r < float64(g.MinDistance) {
		r = float64(g.MinDistance)
	}
	v := float64(p.Speed())
	return 0.5*v*v - float64(g.G)*float64(g.M)/r
}

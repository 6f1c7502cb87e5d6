package particle

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Distribution seeds a disc of particles around the attractor. Particle i
// sits at angle i/N of a full turn at a random radius in [MinRadius,
// MaxRadius), lifted to Height, with a tangential velocity whose magnitude
// is sqrt(G*M/|v|) for the unnormalized tangent v.
type Distribution struct {
	MinRadius float32
	MaxRadius float32
	Height    float32
	G         float32
	M         float32
}

func (d Distribution) Validate() error {
	if d.MinRadius < 0 || d.MaxRadius < d.MinRadius {
		return fmt.Errorf("invalid radius range [%g, %g)", d.MinRadius, d.MaxRadius)
	}
	if d.G <= 0 || d.M <= 0 {
		return fmt.Errorf("gravity and mass must be positive, got G=%g M=%g", d.G, d.M)
	}
	return nil
}

// Sample builds n particles. The same rng seed always yields the same state.
func (d Distribution) Sample(n int, rng *rand.Rand) State {
	s := New(n)
	span := d.MaxRadius - d.MinRadius
	for i := range s {
		r := rng.Float32()
		angle := float32(i) / float32(n) * 2 * math.Pi
		radius := d.MinRadius + r*span

		pos := mgl32.Vec4{
			float32(math.Cos(float64(angle))) * radius,
			d.Height,
			float32(math.Sin(float64(angle))) * radius,
			0,
		}
		s[i] = Particle{Position: pos, Velocity: d.tangent(pos)}
	}
	return s
}

func (d Distribution) tangent(pos mgl32.Vec4) mgl32.Vec4 {
	v := mgl32.Vec3{pos.Z(), -pos.Y(), -pos.X()}
	l := v.Len()
	if l == 0 {
		return mgl32.Vec4{}
	}
	speed := float32(math.Sqrt(float64(d.G * d.M / l)))
	return v.Normalize().Mul(speed).Vec4(0)
}

// Ring places n particles evenly on a circle of the given radius in the
// y=0 plane, each moving at circular-orbit speed for G*M.
func Ring(n int, radius, g, m float32) State {
	s := New(n)
	speed := float32(math.Sqrt(float64(g * m / radius)))
	for i := range s {
		angle := float64(i) / float64(n) * 2 * math.Pi
		c, sn := float32(math.Cos(angle)), float32(math.Sin(angle))
		s[i] = Particle{
			Position: mgl32.Vec4{c * radius, 0, sn * radius, 0},
			Velocity: mgl32.Vec4{sn * speed, 0, -c * speed, 0},
		}
	}
	return s
}

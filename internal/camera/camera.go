// Package camera computes the view and projection matrices used to draw
// the particle disc.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera looks at Target from a point on a circle around the y axis.
type Camera struct {
	Distance float32
	Height   float32
	Angle    float32
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
	// OrbitSpeed is the change of Angle in radians per second.
	OrbitSpeed float32
}

// Default places the eye at (0, 0.25, 1) looking at the origin with a 60°
// vertical field of view.
func Default() *Camera {
	return &Camera{
		Distance: 1,
		Height:   0.25,
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     60,
		Near:     0.1,
		Far:      100,
	}
}

func (c *Camera) Eye() mgl32.Vec3 {
	s, co := math.Sincos(float64(c.Angle))
	return mgl32.Vec3{float32(s) * c.Distance, c.Height, float32(co) * c.Distance}
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, c.Up)
}

func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// Advance moves the camera along its orbit by OrbitSpeed*dt.
func (c *Camera) Advance(dt float32) {
	c.Angle += c.OrbitSpeed * dt
	if c.Angle > 2*math.Pi {
		c.Angle -= 2 * math.Pi
	}
}

// Zoom scales the eye distance, keeping it within the clip range.
func (c *Camera) Zoom(factor float32) {
	c.Distance *= factor
	if c.Distance < c.Near*2 {
		c.Distance = c.Near * 2
	}
	if c.Distance > c.Far/2 {
		c.Distance = c.Far / 2
	}
}

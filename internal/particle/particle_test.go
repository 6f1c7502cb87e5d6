package particle

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestParticleSize(t *testing.T) {
	var p Particle
	if got := len(p.Position) + len(p.Velocity); got != FloatsPerParticle {
		t.Errorf("expected %d floats per particle, got %d", FloatsPerParticle, got)
	}
	if Stride != 32 {
		t.Errorf("expected 32 byte stride, got %d", Stride)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	s := State{
		{Position: mgl32.Vec4{1, 2, 3, 0}, Velocity: mgl32.Vec4{4, 5, 6, 0}},
		{Position: mgl32.Vec4{-1, -2, -3, 0}, Velocity: mgl32.Vec4{-4, -5, -6, 0}},
	}
	buf := make([]float32, s.Floats())
	if err := s.Flatten(buf); err != nil {
		t.Fatalf("flatten failed: %v", err)
	}

	want := []float32{1, 2, 3, 0, 4, 5, 6, 0, -1, -2, -3, 0, -4, -5, -6, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("float %d: expected %v, got %v", i, want[i], buf[i])
		}
	}

	back := New(2)
	if err := back.Unflatten(buf); err != nil {
		t.Fatalf("unflatten failed: %v", err)
	}
	if back[1] != s[1] {
		t.Errorf("expected %v, got %v", s[1], back[1])
	}
}

func TestFlattenLengthMismatch(t *testing.T) {
	s := New(3)
	if err := s.Flatten(make([]float32, 8)); !errors.Is(err, ErrLength) {
		t.Errorf("expected ErrLength, got %v", err)
	}
	if err := s.Unflatten(make([]float32, 32)); !errors.Is(err, ErrLength) {
		t.Errorf("expected ErrLength, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	s := Ring(4, 1, 1, 1)
	if err := s.Validate(); err != nil {
		t.Fatalf("ring should be valid: %v", err)
	}

	s[2].Velocity[1] = float32(math.NaN())
	if err := s.Validate(); !errors.Is(err, ErrNotFinite) {
		t.Errorf("expected ErrNotFinite, got %v", err)
	}

	if err := New(0).Validate(); !errors.Is(err, ErrEmptyState) {
		t.Errorf("expected ErrEmptyState, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := Ring(2, 1, 1, 1)
	c := s.Clone()
	c[0].Position[0] = 42
	if s[0].Position[0] == 42 {
		t.Error("clone shares memory with its source")
	}
}

func TestSampleDeterministic(t *testing.T) {
	d := Distribution{MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, G: 6.67384e-11, M: 1e5}

	a := d.Sample(64, rand.New(rand.NewSource(7)))
	b := d.Sample(64, rand.New(rand.NewSource(7)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d differs between identical seeds", i)
		}
	}
}

func TestSampleLayout(t *testing.T) {
	d := Distribution{MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, G: 6.67384e-11, M: 1e5}
	s := d.Sample(128, rand.New(rand.NewSource(1)))

	for i, p := range s {
		horizontal := math.Hypot(float64(p.Position.X()), float64(p.Position.Z()))
		if horizontal < 0.1-1e-6 || horizontal >= 1.1+1e-6 {
			t.Errorf("particle %d: radius %f outside [0.1, 1.1)", i, horizontal)
		}
		if p.Position.Y() != 0.25 {
			t.Errorf("particle %d: expected height 0.25, got %f", i, p.Position.Y())
		}
		if p.Position.W() != 0 || p.Velocity.W() != 0 {
			t.Errorf("particle %d: padding must be zero", i)
		}

		dot := p.Position.X()*p.Velocity.X() + p.Position.Z()*p.Velocity.Z()
		if math.Abs(float64(dot)) > 1e-6 {
			t.Errorf("particle %d: velocity not tangential in the disc plane (dot=%g)", i, dot)
		}

		want := math.Sqrt(float64(d.G*d.M) / float64(p.Radius()))
		if math.Abs(float64(p.Speed())-want)/want > 1e-4 {
			t.Errorf("particle %d: expected speed %g, got %g", i, want, p.Speed())
		}
	}
}

func TestRing(t *testing.T) {
	s := Ring(4, 1, 1, 4)
	wantPos := [][2]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	for i, w := range wantPos {
		if math.Abs(float64(s[i].Position.X()-w[0])) > 1e-6 || math.Abs(float64(s[i].Position.Z()-w[1])) > 1e-6 {
			t.Errorf("particle %d: expected (%v, %v), got (%v, %v)", i, w[0], w[1], s[i].Position.X(), s[i].Position.Z())
		}
		if math.Abs(float64(s[i].Speed())-2) > 1e-6 {
			t.Errorf("particle %d: expected speed 2, got %v", i, s[i].Speed())
		}
	}
	if math.Abs(s.MeanRadius()-1) > 1e-6 {
		t.Errorf("expected mean radius 1, got %f", s.MeanRadius())
	}
}

func TestMaxRelativeDelta(t *testing.T) {
	a := Ring(4, 10, 1, 1)
	b := a.Clone()
	if d := MaxRelativeDelta(a, b); d != 0 {
		t.Errorf("expected 0 delta for identical states, got %g", d)
	}

	b[0].Position[0] *= 1.01
	if d := MaxRelativeDelta(a, b); math.Abs(d-0.01) > 1e-5 {
		t.Errorf("expected delta 0.01, got %g", d)
	}

	if d := MaxRelativeDelta(a, New(1)); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for mismatched lengths, got %g", d)
	}
}

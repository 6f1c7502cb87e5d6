package metrics

import (
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
	"github.com/san-kum/orbits/internal/sim"
)

// Stability is the fraction of samples in which every particle is finite
// and within maxRadius of the attractor.
type Stability struct {
	name       string
	maxRadius  float32
	violations int
	samples    int
}

func NewStability(maxRadius float32) *Stability {
	return &Stability{
		name:      "stability",
		maxRadius: maxRadius,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x particle.State, t float64) {
	s.samples++
	for _, p := range x {
		if !p.IsValid() || p.Radius() > s.maxRadius {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// NonFinite counts particles with a NaN or infinite component in the most
// recent sample.
type NonFinite struct {
	count int
}

func (n *NonFinite) Name() string { return "non_finite" }

func (n *NonFinite) Observe(x particle.State, t float64) {
	n.count = 0
	for _, p := range x {
		if !p.IsValid() {
			n.count++
		}
	}
}

func (n *NonFinite) Value() float64 { return float64(n.count) }
func (n *NonFinite) Reset()         { n.count = 0 }

// Standard is the metric set recorded by headless runs.
func Standard(g physics.Gravity, maxRadius float32) []sim.Metric {
	return []sim.Metric{
		NewMeanRadius(),
		NewRadiusDrift(),
		NewEnergy(g),
		NewEnergyDrift(g),
		NewStability(maxRadius),
		&NonFinite{},
	}
}

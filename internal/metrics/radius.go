package metrics

import (
	"math"

	"github.com/san-kum/orbits/internal/particle"
)

// MeanRadius is the mean distance from the attractor in the most recent
// sample.
type MeanRadius struct {
	value float64
}

func NewMeanRadius() *MeanRadius { return &MeanRadius{} }

func (m *MeanRadius) Name() string { return "mean_radius" }

func (m *MeanRadius) Observe(s particle.State, t float64) {
	m.value = s.MeanRadius()
}

func (m *MeanRadius) Value() float64 { return m.value }
func (m *MeanRadius) Reset()         { m.value = 0 }

// RadiusDrift tracks the largest relative change of any particle's radius
// from its radius in the first sample. A bound orbit with a small dt keeps
// this close to zero.
type RadiusDrift struct {
	initial  []float64
	maxDrift float64
}

func NewRadiusDrift() *RadiusDrift { return &RadiusDrift{} }

func (d *RadiusDrift) Name() string { return "radius_drift" }

func (d *RadiusDrift) Observe(s particle.State, t float64) {
	if d.initial == nil || len(d.initial) != len(s) {
		d.initial = make([]float64, len(s))
		for i, p := range s {
			d.initial[i] = float64(p.Radius())
		}
		return
	}
	for i, p := range s {
		r0 := d.initial[i]
		if r0 == 0 {
			continue
		}
		drift := math.Abs(float64(p.Radius())-r0) / r0
		if math.IsNaN(drift) {
			drift = math.Inf(1)
		}
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

func (d *RadiusDrift) Value() float64 { return d.maxDrift }

func (d *RadiusDrift) Reset() {
	d.initial = nil
	d.maxDrift = 0
}

package metrics

import (
	"math"

	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
)

// Energy is the mean specific orbital energy of the most recent sample.
type Energy struct {
	name    string
	gravity physics.Gravity
	value   float64
}

func NewEnergy(g physics.Gravity) *Energy {
	return &Energy{
		name:    "energy",
		gravity: g,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s particle.State, t float64) {
	e.value = meanEnergy(e.gravity, s)
}

func (e *Energy) Value() float64 { return e.value }

func (e *Energy) Reset() { e.value = 0 }

func meanEnergy(g physics.Gravity, s particle.State) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s {
		sum += g.SpecificEnergy(p)
	}
	return sum / float64(len(s))
}

// EnergyDrift is the largest relative change of the mean specific energy
// from the first sample.
type EnergyDrift struct {
	name          string
	gravity       physics.Gravity
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(g physics.Gravity) *EnergyDrift {
	return &EnergyDrift{
		name:    "energy_drift",
		gravity: g,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s particle.State, t float64) {
	energy := meanEnergy(e.gravity, s)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

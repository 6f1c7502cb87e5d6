package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrShortSeries = errors.New("analysis: series needs at least 4 samples")

// Spectrum returns the one-sided power spectrum of series sampled every
// interval time units. The mean is removed first so bin 0 only carries
// numerical noise.
func Spectrum(series []float64, interval float64) (freqs, power []float64) {
	n := len(series)
	if n == 0 || interval <= 0 {
		return nil, nil
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	bins := n/2 + 1
	freqs = make([]float64, bins)
	power = make([]float64, bins)
	for k := 0; k < bins; k++ {
		freqs[k] = float64(k) / (float64(n) * interval)
		a := cmplx.Abs(coeffs[k])
		power[k] = a * a / float64(n)
	}
	return freqs, power
}

// Peak is one spectral component.
type Peak struct {
	Frequency float64
	Period    float64
	Power     float64
}

// DominantFrequency finds the strongest component above zero frequency.
func DominantFrequency(series []float64, interval float64) (Peak, error) {
	if len(series) < 4 {
		return Peak{}, ErrShortSeries
	}
	if interval <= 0 {
		return Peak{}, errors.New("analysis: sample interval must be positive")
	}

	freqs, power := Spectrum(series, interval)
	best := 1
	for k := 2; k < len(power); k++ {
		if power[k] > power[best] {
			best = k
		}
	}
	return Peak{Frequency: freqs[best], Period: 1 / freqs[best], Power: power[best]}, nil
}

// SampleInterval is the mean spacing of times.
func SampleInterval(times []float64) float64 {
	if len(times) < 2 {
		return 0
	}
	return (times[len(times)-1] - times[0]) / float64(len(times)-1)
}

// OrbitalFrequency is the revolution frequency of a circular orbit of
// radius r around mass m.
func OrbitalFrequency(g, m, r float64) float64 {
	if r <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(g*m/(r*r*r)) / (2 * math.Pi)
}

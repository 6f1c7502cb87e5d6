// Package analysis inspects the metric series recorded by headless runs.
//
//   - [Spectrum]: power spectrum of a uniformly sampled series
//   - [DominantFrequency]: strongest non-constant component of a series
//   - [OrbitalFrequency]: analytic frequency of a circular orbit
//   - [Summarize]: range, mean and spread of a series
//
// # Radius oscillation
//
// Particles started with a vertical offset follow eccentric orbits, so the
// mean radius of the disc oscillates. Its dominant frequency should sit
// close to the orbital frequency of the typical particle:
//
//	values, times := storage.Series(samples, "mean_radius")
//	peak, err := analysis.DominantFrequency(values, analysis.SampleInterval(times))
package analysis

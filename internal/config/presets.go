package config

import "sort"

var Presets = map[string]*Config{
	// kernel reproduces the OpenCL program: 16384 particles, four substeps
	// per frame, starting on the device.
	"kernel": {
		Particles: 256 * 64, Backend: "kernel", Mode: "gpu", Dt: 0.5,
		MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, Substeps: 4,
	},
	// shader reproduces the compute shader program.
	"shader": {
		Particles: 256 * 1024, Backend: "shader", Mode: "gpu", Dt: 0.25,
		MinRadius: 0.1, MaxRadius: 1.1, Height: 0.05, WorkGroupSize: 1024, Substeps: 1,
	},
	"cpu": {
		Particles: 256 * 16, Backend: "cpu", Mode: "cpu", Dt: 0.5,
		MinRadius: 0.1, MaxRadius: 1.1, Height: 0.25, Substeps: 1,
	},
	"ring": {
		Particles: 1024, Backend: "kernel", Mode: "cpu", Dt: 0.1, Layout: LayoutRing,
		MinRadius: 0.5, MaxRadius: 0.5, Height: 0, Substeps: 1,
	},
}

// GetPreset returns a full configuration: the preset's fields applied over
// DefaultConfig. It returns nil for unknown names.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Particles = p.Particles
	cfg.Backend = p.Backend
	cfg.Mode = p.Mode
	cfg.Dt = p.Dt
	cfg.MinRadius = p.MinRadius
	cfg.MaxRadius = p.MaxRadius
	cfg.Height = p.Height
	cfg.Substeps = p.Substeps
	if p.Layout != "" {
		cfg.Layout = p.Layout
	}
	if p.WorkGroupSize > 0 {
		cfg.WorkGroupSize = p.WorkGroupSize
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

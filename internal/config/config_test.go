package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/physics"
	"github.com/san-kum/orbits/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Particles != 16384 {
		t.Errorf("expected 16384 particles, got %d", cfg.Particles)
	}
	if cfg.Gravity != physics.DefaultG || cfg.Mass != physics.DefaultM {
		t.Errorf("unexpected gravity constants G=%g M=%g", cfg.Gravity, cfg.Mass)
	}
	if cfg.Dt != 0.5 {
		t.Errorf("expected dt 0.5, got %g", cfg.Dt)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultMode(t *testing.T) {
	cfg := DefaultConfig()
	want := sim.ModeCPU
	if compute.OpenCLAvailable() {
		want = sim.ModeGPU
	}
	if cfg.InitialMode() != want {
		t.Errorf("expected %s mode with opencl=%v, got %s", want, compute.OpenCLAvailable(), cfg.InitialMode())
	}
	if cfg.Kind() != compute.KindKernel {
		t.Errorf("expected kernel backend, got %s", cfg.Kind())
	}
}

func TestEffectiveSubsteps(t *testing.T) {
	tests := []struct {
		backend  string
		substeps int
		expected int
	}{
		{"kernel", 0, 4},
		{"shader", 0, 1},
		{"cpu", 0, 1},
		{"kernel", 2, 2},
		{"cpu", 3, 3},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Backend = tt.backend
		cfg.Substeps = tt.substeps
		if got := cfg.EffectiveSubsteps(); got != tt.expected {
			t.Errorf("%s/%d: expected %d substeps, got %d", tt.backend, tt.substeps, tt.expected, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		configErr bool
	}{
		{"default", func(c *Config) {}, false, false},
		{"zero particles", func(c *Config) { c.Particles = 0 }, true, true},
		{"unknown backend", func(c *Config) { c.Backend = "vulkan" }, true, true},
		{"unknown mode", func(c *Config) { c.Mode = "tpu" }, true, false},
		{"gpu mode on cpu backend", func(c *Config) { c.Backend = "cpu"; c.Mode = "gpu" }, true, false},
		{"zero dt", func(c *Config) { c.Dt = 0 }, true, false},
		{"negative mass", func(c *Config) { c.Mass = -1 }, true, false},
		{"inverted radii", func(c *Config) { c.MinRadius = 2 }, true, false},
		{"shader not multiple", func(c *Config) { c.Backend = "shader"; c.Particles = 1000 }, true, true},
		{"shader zero group", func(c *Config) { c.Backend = "shader"; c.WorkGroupSize = 0 }, true, true},
		{"kernel ignores group size", func(c *Config) { c.Particles = 1000 }, false, false},
		{"negative substeps", func(c *Config) { c.Substeps = -1 }, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var ce *compute.ConfigError
			if errors.As(err, &ce) != tt.configErr {
				t.Errorf("expected config error %v, got %T", tt.configErr, err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbits.yaml")
	cfg := DefaultConfig()
	cfg.Particles = 4096
	cfg.Backend = "shader"
	cfg.Window.Camera.OrbitSpeed = 0.1
	cfg.Shaders.Compute = "custom.comp"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Particles != 4096 || loaded.Backend != "shader" {
		t.Errorf("unexpected config %+v", loaded)
	}
	if loaded.Window.Camera.OrbitSpeed != 0.1 || loaded.Shaders.Compute != "custom.comp" {
		t.Errorf("nested fields lost: %+v", loaded.Window)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestComputeOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDistance = 0.01
	opts := cfg.ComputeOptions()

	if opts.Gravity.MinDistance != 0.01 {
		t.Errorf("expected min distance 0.01, got %g", opts.Gravity.MinDistance)
	}
	if opts.Substeps != 4 {
		t.Errorf("expected kernel substeps 4, got %d", opts.Substeps)
	}
	if opts.Workers <= 0 {
		t.Error("workers should default to the cpu count")
	}
	if cfg.SimOptions().Mode != DefaultMode() {
		t.Errorf("expected %s mode, got %s", DefaultMode(), cfg.SimOptions().Mode)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("shader")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Particles != 262144 || cfg.Dt != 0.25 || cfg.Height != 0.05 {
		t.Errorf("unexpected shader preset %+v", cfg)
	}
	if cfg.Gravity != physics.DefaultG {
		t.Error("preset should inherit default gravity")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValid(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestInitialState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Particles = 64

	a, b := cfg.InitialState(), cfg.InitialState()
	if len(a) != 64 {
		t.Fatalf("expected 64 particles, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d differs between identical seeds", i)
		}
	}

	ring := GetPreset("ring")
	for i, p := range ring.InitialState() {
		if r := p.Radius(); r < 0.4999 || r > 0.5001 {
			t.Fatalf("ring particle %d at radius %f", i, r)
		}
	}

	cfg.Layout = "spiral"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown layout")
	}
}

package config

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/orbits/internal/camera"
	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/physics"
	"github.com/san-kum/orbits/internal/sim"
)

const (
	DefaultParticles = 256 * 64
	DefaultDt        = 0.5
	DefaultMinRadius = 0.1
	DefaultMaxRadius = 1.1
	DefaultHeight    = 0.25
	DefaultSeed      = 1
	DefaultWidth     = 1280
	DefaultHeightPx  = 720
	DefaultPointSize = 1.0
)

const (
	LayoutDisc = "disc"
	LayoutRing = "ring"
)

type Config struct {
	Particles     int          `yaml:"particles"`
	Backend       string       `yaml:"backend"`
	Mode          string       `yaml:"mode"`
	Dt            float32      `yaml:"dt"`
	Gravity       float32      `yaml:"gravity"`
	Mass          float32      `yaml:"mass"`
	MinRadius     float32      `yaml:"min_radius"`
	MaxRadius     float32      `yaml:"max_radius"`
	Height        float32      `yaml:"height"`
	Layout        string       `yaml:"layout"`
	MinDistance   float32      `yaml:"min_distance"`
	WorkGroupSize int          `yaml:"work_group_size"`
	Substeps      int          `yaml:"substeps"`
	Seed          int64        `yaml:"seed"`
	Render        bool         `yaml:"render"`
	Workers       int          `yaml:"workers"`
	Window        WindowConfig `yaml:"window"`
	Shaders       ShaderConfig `yaml:"shaders"`
	KernelPath    string       `yaml:"kernel_path"`
}

type WindowConfig struct {
	Width     int          `yaml:"width"`
	Height    int          `yaml:"height"`
	PointSize float32      `yaml:"point_size"`
	Camera    CameraConfig `yaml:"camera"`
}

type CameraConfig struct {
	Distance   float32 `yaml:"distance"`
	Height     float32 `yaml:"height"`
	FovY       float32 `yaml:"fov"`
	OrbitSpeed float32 `yaml:"orbit_speed"`
}

// ShaderConfig overrides the embedded GLSL sources. Empty paths keep the
// built-in programs.
type ShaderConfig struct {
	Vertex   string `yaml:"vertex"`
	Fragment string `yaml:"fragment"`
	Compute  string `yaml:"compute"`
}

// DefaultMode starts on the GPU only when the binary can reach an OpenCL
// device; otherwise the default kernel backend would fail at startup.
func DefaultMode() sim.Mode {
	if compute.OpenCLAvailable() {
		return sim.ModeGPU
	}
	return sim.ModeCPU
}

func DefaultConfig() *Config {
	return &Config{
		Particles:     DefaultParticles,
		Backend:       string(compute.KindKernel),
		Mode:          DefaultMode().String(),
		Dt:            DefaultDt,
		Gravity:       physics.DefaultG,
		Mass:          physics.DefaultM,
		MinRadius:     DefaultMinRadius,
		MaxRadius:     DefaultMaxRadius,
		Height:        DefaultHeight,
		Layout:        LayoutDisc,
		MinDistance:   physics.DefaultMinDistance,
		WorkGroupSize: compute.DefaultWorkGroupSize,
		Seed:          DefaultSeed,
		Render:        true,
		Window: WindowConfig{
			Width:     DefaultWidth,
			Height:    DefaultHeightPx,
			PointSize: DefaultPointSize,
			Camera:    CameraConfig{Distance: 1, Height: 0.25, FovY: 60},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first configuration error. Errors about GPU
// resources are *compute.ConfigError so callers can tell them apart from
// device failures.
func (c *Config) Validate() error {
	if c.Particles <= 0 {
		return &compute.ConfigError{Resource: "particle count", Reason: fmt.Sprintf("must be positive, got %d", c.Particles)}
	}
	kind, err := compute.ParseKind(c.Backend)
	if err != nil {
		return err
	}
	mode, err := sim.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	if kind == compute.KindCPU && mode == sim.ModeGPU {
		return fmt.Errorf("mode gpu needs a kernel or shader backend")
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if err := c.GravityModel().Validate(); err != nil {
		return err
	}
	if err := c.Distribution().Validate(); err != nil {
		return err
	}
	if c.Layout != LayoutDisc && c.Layout != LayoutRing {
		return fmt.Errorf("unknown layout %q (want disc or ring)", c.Layout)
	}
	if c.Substeps < 0 {
		return fmt.Errorf("substeps must not be negative, got %d", c.Substeps)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if kind == compute.KindShader {
		if err := compute.CheckWorkGroups(c.Particles, c.WorkGroupSize); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Kind() compute.Kind {
	k, err := compute.ParseKind(c.Backend)
	if err != nil {
		return compute.KindCPU
	}
	return k
}

func (c *Config) InitialMode() sim.Mode {
	m, err := sim.ParseMode(c.Mode)
	if err != nil {
		return sim.ModeCPU
	}
	return m
}

// EffectiveSubsteps is Substeps, or the backend's default when unset: the
// kernel backend splits each frame into four, everything else runs one.
func (c *Config) EffectiveSubsteps() int {
	if c.Substeps > 0 {
		return c.Substeps
	}
	if c.Kind() == compute.KindKernel {
		return compute.DefaultKernelSubsteps
	}
	return 1
}

func (c *Config) GravityModel() physics.Gravity {
	g := physics.NewGravity(c.Gravity, c.Mass)
	if c.MinDistance > 0 {
		g.MinDistance = c.MinDistance
	}
	return g
}

func (c *Config) Distribution() particle.Distribution {
	return particle.Distribution{
		MinRadius: c.MinRadius,
		MaxRadius: c.MaxRadius,
		Height:    c.Height,
		G:         c.Gravity,
		M:         c.Mass,
	}
}

// InitialState builds the starting particles. The disc layout is seeded
// from Seed; the ring layout is deterministic and uses MaxRadius.
func (c *Config) InitialState() particle.State {
	if c.Layout == LayoutRing {
		return particle.Ring(c.Particles, c.MaxRadius, c.Gravity, c.Mass)
	}
	return c.Distribution().Sample(c.Particles, rand.New(rand.NewSource(c.Seed)))
}

func (c *Config) ComputeOptions() compute.Options {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return compute.Options{
		Gravity:       c.GravityModel(),
		Substeps:      c.EffectiveSubsteps(),
		WorkGroupSize: c.WorkGroupSize,
		Workers:       workers,
	}
}

func (c *Config) SimOptions() sim.Options {
	return sim.Options{Dt: c.Dt, Mode: c.InitialMode(), Render: c.Render}
}

func (c *Config) Camera() *camera.Camera {
	cam := camera.Default()
	if c.Window.Camera.Distance > 0 {
		cam.Distance = c.Window.Camera.Distance
	}
	cam.Height = c.Window.Camera.Height
	if c.Window.Camera.FovY > 0 {
		cam.FovY = c.Window.Camera.FovY
	}
	cam.OrbitSpeed = c.Window.Camera.OrbitSpeed
	return cam
}

// Package scenario runs scripted sequences of frames, backend switches and
// render toggles against a simulation context.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/sim"
)

// Scenario defines a scripted simulation sequence.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Preset names the configuration to start from; empty means defaults.
	Preset    string `yaml:"preset"`
	Particles int    `yaml:"particles"`
	Seed      int64  `yaml:"seed"`
	// Compare runs a reference context alongside without any switches and
	// reports the final divergence between the two.
	Compare bool   `yaml:"compare"`
	Steps   []Step `yaml:"steps"`
}

// Step is a single step in a scenario. Toggle and Render are applied
// before the step's frames run.
type Step struct {
	Label  string `yaml:"label"`
	Frames int    `yaml:"frames"`
	Toggle bool   `yaml:"toggle"`
	Render *bool  `yaml:"render"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	if s.Particles < 0 {
		return fmt.Errorf("particles must not be negative, got %d", s.Particles)
	}
	for i, st := range s.Steps {
		if st.Frames < 0 {
			return fmt.Errorf("step %d: frames must not be negative, got %d", i+1, st.Frames)
		}
		if st.Frames == 0 && !st.Toggle && st.Render == nil {
			return fmt.Errorf("step %d does nothing", i+1)
		}
	}
	return nil
}

// Frames is the total number of frames the scenario produces.
func (s *Scenario) Frames() int {
	n := 0
	for _, st := range s.Steps {
		n += st.Frames
	}
	return n
}

func (s *Scenario) Switches() int {
	n := 0
	for _, st := range s.Steps {
		if st.Toggle {
			n++
		}
	}
	return n
}

type StepResult struct {
	Index   int
	Label   string
	Frames  int
	Mode    sim.Mode
	Backend string
	Elapsed time.Duration
}

type Report struct {
	Name     string
	Steps    []StepResult
	Frames   int
	Switches int
	Elapsed  time.Duration
	// Divergence is the largest relative difference between the scripted
	// and reference states. NaN when no reference was run.
	Divergence float64
}

// Run executes every step against c. When reference is non-nil it is
// advanced by the same number of frames without switching, and the final
// states are compared.
func Run(ctx context.Context, s *Scenario, c, reference *sim.Context) (*Report, error) {
	log := logging.Named("scenario")
	report := &Report{Name: s.Name, Divergence: math.NaN()}
	start := time.Now()

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if st.Toggle {
			if err := c.Toggle(); err != nil {
				return report, fmt.Errorf("step %d toggle: %w", i+1, err)
			}
			report.Switches++
		}
		if st.Render != nil && *st.Render != c.Rendering() {
			c.ToggleRender()
		}

		stepStart := time.Now()
		for f := 0; f < st.Frames; f++ {
			if err := c.Frame(ctx); err != nil {
				return report, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		res := StepResult{
			Index:   i + 1,
			Label:   st.Label,
			Frames:  st.Frames,
			Mode:    c.Mode(),
			Backend: c.Active().Name(),
			Elapsed: time.Since(stepStart),
		}
		report.Steps = append(report.Steps, res)
		report.Frames += st.Frames

		log.Info("step complete",
			zap.Int("step", res.Index),
			zap.Int("of", len(s.Steps)),
			zap.String("label", res.Label),
			zap.Int("frames", res.Frames),
			zap.String("backend", res.Backend),
			zap.Duration("took", res.Elapsed),
		)
	}
	report.Elapsed = time.Since(start)

	if reference == nil {
		return report, nil
	}
	for f := 0; f < report.Frames; f++ {
		if err := reference.Frame(ctx); err != nil {
			return report, fmt.Errorf("reference: %w", err)
		}
	}

	got, want := particle.New(c.Len()), particle.New(reference.Len())
	if err := c.Snapshot(got); err != nil {
		return report, err
	}
	if err := reference.Snapshot(want); err != nil {
		return report, err
	}
	report.Divergence = particle.MaxRelativeDelta(want, got)
	return report, nil
}

package gui

import (
	"fmt"

	"github.com/san-kum/orbits/internal/sim"
)

// Status is the HUD content for one frame.
type Status struct {
	Mode      sim.Mode
	Backend   string
	Particles int
	Frame     uint64
	Switches  int
	Rendering bool
	FPS       int
	Message   string
}

func (s Status) Lines() []string {
	lines := []string{
		fmt.Sprintf("%s :: %s", s.Mode, s.Backend),
		fmt.Sprintf("%d particles", s.Particles),
		fmt.Sprintf("frame %d  %d fps", s.Frame, s.FPS),
	}
	if s.Switches > 0 {
		lines = append(lines, fmt.Sprintf("%d switches", s.Switches))
	}
	if !s.Rendering {
		lines = append(lines, "rendering off")
	}
	if s.Message != "" {
		lines = append(lines, s.Message)
	}
	return lines
}

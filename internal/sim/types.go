package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
)

// Mode selects which backend is authoritative.
type Mode int

const (
	ModeCPU Mode = iota
	ModeGPU
)

func (m Mode) String() string {
	switch m {
	case ModeCPU:
		return "cpu"
	case ModeGPU:
		return "gpu"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return ModeCPU, nil
	case "gpu":
		return ModeGPU, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want cpu or gpu)", s)
	}
}

func (m Mode) Other() Mode {
	if m == ModeCPU {
		return ModeGPU
	}
	return ModeCPU
}

// Renderer draws the particle buffer. It receives the same buffer every
// frame and never gets host memory for GPU backends.
type Renderer interface {
	Draw(buf interop.Buffer, n int) error
}

// Observer is notified after every frame.
type Observer interface {
	OnFrame(stats FrameStats)
}

// Metric accumulates a scalar over sampled states.
type Metric interface {
	Name() string
	Observe(s particle.State, t float64)
	Value() float64
	Reset()
}

type FrameStats struct {
	Frame    uint64
	Time     float64
	Mode     Mode
	Backend  string
	Step     time.Duration
	Draw     time.Duration
	Rendered bool
}

// Sample is a metric reading taken at one frame.
type Sample struct {
	Frame  uint64
	Time   float64
	Mode   Mode
	Step   time.Duration
	Values map[string]float64
}

type Result struct {
	Frames   int
	Time     float64
	Switches int
	Elapsed  time.Duration
	Samples  []Sample
	Metrics  map[string]float64
}

// Options configure a Context.
type Options struct {
	Dt     float32
	Mode   Mode
	Render bool
	// SampleEvery is the frame interval at which metrics observe a host
	// copy of the state. Zero disables sampling.
	SampleEvery int
	// ToggleEvery makes Run switch backends after every ToggleEvery
	// frames. Zero disables it; it is ignored without a GPU backend.
	ToggleEvery int
}

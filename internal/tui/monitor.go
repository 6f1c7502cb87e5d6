// Package tui is a terminal monitor for headless simulations.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/orbits/internal/sim"
)

const historyCapacity = 120

type TickMsg time.Time

// Model drives a sim.Context from the bubbletea event loop: every tick
// produces one frame. The context must have been created with r as its
// renderer.
type Model struct {
	ctx      context.Context
	sim      *sim.Context
	renderer *CanvasRenderer
	interval time.Duration

	running  bool
	stepTime time.Duration
	history  []float64
	message  string
	err      error
	showHelp bool
}

func NewModel(ctx context.Context, c *sim.Context, r *CanvasRenderer, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	return Model{
		ctx:      ctx,
		sim:      c,
		renderer: r,
		interval: time.Second / time.Duration(fps),
		running:  true,
		history:  make([]float64, 0, historyCapacity),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Err is the fatal frame error that stopped the monitor, if any.
func (m Model) Err() error { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "e":
			if err := m.sim.Toggle(); err != nil {
				m.message = err.Error()
			} else {
				m.message = fmt.Sprintf("switched to %s", m.sim.Active().Name())
			}
		case "r":
			if m.sim.ToggleRender() {
				m.message = "rendering on"
			} else {
				m.message = "rendering off"
			}
		case "+", "=":
			m.renderer.Extent *= 0.8
		case "-", "_":
			m.renderer.Extent *= 1.25
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			start := time.Now()
			if err := m.sim.Frame(m.ctx); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.stepTime = time.Since(start)
			if m.sim.Rendering() {
				m.history = append(m.history, m.renderer.MeanRadius())
				if len(m.history) > historyCapacity {
					m.history = m.history[1:]
				}
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("ORBITS") + "\n")

	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Mean radius"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	mode := cpuStyle.Render(m.sim.Mode().String())
	if m.sim.Mode() == sim.ModeGPU {
		mode = gpuStyle.Render(m.sim.Mode().String())
	}
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Mode", mode)
	row("Backend", m.sim.Active().Name())
	row("Particles", fmt.Sprintf("%d", m.sim.Len()))
	row("Frame", fmt.Sprintf("%d", m.sim.Frames()))
	row("Time", fmt.Sprintf("%.2f", m.sim.Time()))
	row("Step", m.stepTime.String())
	row("Switches", fmt.Sprintf("%d", m.sim.Switches()))
	row("Render", fmt.Sprintf("%v", m.sim.Rendering()))
	if m.sim.Rendering() {
		row("Visible", fmt.Sprintf("%d", m.renderer.Visible()))
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	} else if m.message != "" {
		s.WriteString("\n" + valueStyle.Render(m.message) + "\n")
	}

	if m.showHelp {
		s.WriteString(helpStyle.Render("\nE      switch cpu/gpu\nR      toggle rendering\nSpace  pause\n+/-    zoom\nQ      quit"))
	} else {
		s.WriteString(helpStyle.Render("\n─────────────────────\nE:Switch R:Render Q:Quit ?:Help"))
	}

	stats := statsStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.renderer.Canvas.String()), stats)
}

// Run blocks until the monitor is closed and returns the first fatal
// frame error.
func Run(m Model) error {
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	return final.(Model).Err()
}

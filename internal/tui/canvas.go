package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/orbits/internal/interop"
	"github.com/san-kum/orbits/internal/particle"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at (x, y) in sub-pixel coordinates. The canvas is
// Width*2 by Height*4 sub-pixels.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

func (c *Canvas) Lit() int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != blank {
				n++
			}
		}
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// CanvasRenderer draws the particle buffer onto a braille canvas, looking
// down the y axis. Extent is the world distance from the centre to the
// canvas edge.
type CanvasRenderer struct {
	Canvas *Canvas
	Extent float32

	floats     []float32
	meanRadius float64
	visible    int
}

func NewCanvasRenderer(w, h int, extent float32) *CanvasRenderer {
	return &CanvasRenderer{Canvas: NewCanvas(w, h), Extent: extent}
}

func (r *CanvasRenderer) Draw(buf interop.Buffer, n int) error {
	need := n * particle.FloatsPerParticle
	if len(r.floats) != need {
		r.floats = make([]float32, need)
	}
	if err := buf.Download(r.floats); err != nil {
		return fmt.Errorf("read render buffer: %w", err)
	}

	r.Canvas.Clear()
	cw, ch := float32(r.Canvas.Width*2), float32(r.Canvas.Height*4)
	sum := 0.0
	r.visible = 0
	for i := 0; i < n; i++ {
		p := r.floats[i*particle.FloatsPerParticle:]
		x, y, z := p[0], p[1], p[2]
		sum += math.Sqrt(float64(x*x + y*y + z*z))

		px := (x/r.Extent + 1) / 2 * cw
		py := (z/r.Extent + 1) / 2 * ch
		if math.IsNaN(float64(px)) || math.IsNaN(float64(py)) || px < 0 || py < 0 || px >= cw || py >= ch {
			continue
		}
		r.Canvas.Set(int(px), int(py))
		r.visible++
	}
	if n > 0 {
		r.meanRadius = sum / float64(n)
	}
	return nil
}

// MeanRadius is the mean particle radius of the last drawn frame.
func (r *CanvasRenderer) MeanRadius() float64 { return r.meanRadius }

// Visible is the number of particles inside the canvas on the last frame.
func (r *CanvasRenderer) Visible() int { return r.visible }

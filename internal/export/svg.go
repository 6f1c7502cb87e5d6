// Package export renders simulation output as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/orbits/internal/particle"
)

const background = "#0a0a0a"

// StateSVG draws the particles of s looking down the y axis onto a square
// image size pixels wide. extent is the world distance from the centre to
// the image edge; particles outside it or with non-finite positions are
// skipped.
func StateSVG(s particle.State, extent float32, size int) string {
	if size <= 0 || extent <= 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="#ff78dc" fill-opacity="0.6">
`, size, size, size, size, background)

	half := float64(size) / 2
	scale := half / float64(extent)
	dot := math.Max(0.5, float64(size)/1000)
	for _, p := range s {
		x, z := float64(p.Position.X()), float64(p.Position.Z())
		if math.IsNaN(x) || math.IsNaN(z) || math.Abs(x) > float64(extent) || math.Abs(z) > float64(extent) {
			continue
		}
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", half+x*scale, half-z*scale, dot)
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// SeriesSVG draws values against times as a polyline.
func SeriesSVG(times, values []float64, width, height int, strokeColor string) string {
	n := len(values)
	if len(times) < n {
		n = len(times)
	}
	if n < 2 {
		return ""
	}

	// Find bounds
	minX, maxX := times[0], times[n-1]
	minY, maxY := values[0], values[0]
	for _, v := range values[:n] {
		if v < minY {
			minY = v
		}
		if v > maxY {
			maxY = v
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor)

	for i := 0; i < n; i++ {
		x := (times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// Package canvas is a reference host for brush command logs: it applies
// paint commands to a fixed-size cell grid and renders the grid to a
// terminal with 24-bit background colours.
package canvas

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/thomasrohde/brush/pkg/evaluator"
)

type cell struct {
	painted bool
	color   evaluator.RGB
}

// Grid is a Width x Height surface addressed from the top-left corner.
type Grid struct {
	Width  int
	Height int
	cells  []cell
}

// New creates an empty grid.
func New(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{Width: width, Height: height, cells: make([]cell, width*height)}
}

func (g *Grid) index(x, y int64) (int, bool) {
	if x < 0 || y < 0 || x >= int64(g.Width) || y >= int64(g.Height) {
		return 0, false
	}
	return int(y)*g.Width + int(x), true
}

// Apply paints each command in order; later commands overwrite earlier ones.
// Commands outside the grid are skipped and counted as clipped.
func (g *Grid) Apply(cmds []evaluator.Command) (applied, clipped int) {
	for _, cmd := range cmds {
		i, ok := g.index(cmd.X, cmd.Y)
		if !ok {
			clipped++
			continue
		}
		g.cells[i] = cell{painted: true, color: cmd.Color}
		applied++
	}
	return applied, clipped
}

// At returns the colour at x, y and whether the cell has been painted.
func (g *Grid) At(x, y int) (evaluator.RGB, bool) {
	i, ok := g.index(int64(x), int64(y))
	if !ok {
		return evaluator.RGB{}, false
	}
	c := g.cells[i]
	return c.color, c.painted
}

// Clear resets every cell.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = cell{}
	}
}

// RenderOptions controls Render output.
type RenderOptions struct {
	// Glyph is written for every cell; its background carries the colour.
	Glyph string
	// Color enables ANSI colour. Without it painted cells print as '#'
	// and empty cells as '.', each repeated to the glyph's width.
	Color bool
}

// Render writes the grid row by row.
func (g *Grid) Render(w io.Writer, opts RenderOptions) error {
	glyph := opts.Glyph
	if glyph == "" {
		glyph = "  "
	}
	width := len([]rune(glyph))
	blank := strings.Repeat(" ", width)
	if !opts.Color {
		blank = strings.Repeat(".", width)
	}
	solid := strings.Repeat("#", width)

	// painters caches one *color.Color per distinct RGB.
	painters := make(map[evaluator.RGB]*color.Color)
	painter := func(rgb evaluator.RGB) *color.Color {
		p, ok := painters[rgb]
		if !ok {
			p = color.BgRGB(int(rgb.R), int(rgb.G), int(rgb.B))
			p.EnableColor()
			painters[rgb] = p
		}
		return p
	}

	bw := bufio.NewWriter(w)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := g.cells[y*g.Width+x]
			switch {
			case !c.painted:
				bw.WriteString(blank)
			case opts.Color:
				bw.WriteString(painter(c.color).Sprint(glyph))
			default:
				bw.WriteString(solid)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// String renders the grid without colour.
func (g *Grid) String() string {
	var b strings.Builder
	_ = g.Render(&b, RenderOptions{Glyph: "#"})
	return b.String()
}

// Summary describes the result of applying a command log.
func Summary(applied, clipped int) string {
	if clipped == 0 {
		return fmt.Sprintf("%d commands applied", applied)
	}
	return fmt.Sprintf("%d commands applied, %d outside the canvas", applied, clipped)
}

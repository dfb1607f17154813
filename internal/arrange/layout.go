// Package arrange computes surface positions inside a layer: tiled grids and
// stacks for "layer arrange", and random non-overlapping spots for "place".
package arrange

import (
	"fmt"
	"math"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Options controls tiled arrangement.
type Options struct {
	Mode string
	Gap  int
	// FlexibleLastRow lets a short last grid row use the full width.
	FlexibleLastRow bool
	// MaxWidth and MaxHeight cap each surface; smaller surfaces are centred
	// in their slot. Zero means no cap.
	MaxWidth  int
	MaxHeight int
}

// CalculateGrid determines the grid dimensions for n surfaces.
func CalculateGrid(n int) (rows, cols int) {
	if n == 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return rows, cols
}

// Positions computes n rectangles tiling area.
func Positions(n int, area layout.Rect, opts Options) ([]layout.Rect, error) {
	if n == 0 {
		return nil, nil
	}

	var rows, cols int
	flexible := opts.FlexibleLastRow
	switch opts.Mode {
	case config.ArrangeGrid, "":
		rows, cols = CalculateGrid(n)
	case config.ArrangeVertical:
		rows, cols = n, 1
		flexible = false
	case config.ArrangeHorizontal:
		rows, cols = 1, n
		flexible = false
	default:
		return nil, fmt.Errorf("unsupported arrange mode: %q", opts.Mode)
	}

	gap := opts.Gap
	slotWidth := (area.Width - (cols+1)*gap) / cols
	slotHeight := (area.Height - (rows+1)*gap) / rows
	if slotWidth <= 0 || slotHeight <= 0 {
		return nil, fmt.Errorf(
			"insufficient space: area=%dx%d rows=%d cols=%d gap=%d (slot=%dx%d)",
			area.Width, area.Height, rows, cols, gap, slotWidth, slotHeight,
		)
	}

	width := capTo(slotWidth, opts.MaxWidth)
	height := capTo(slotHeight, opts.MaxHeight)

	lastRow := rows - 1
	inLastRow := n - lastRow*cols
	var lastSlotWidth, lastWidth int
	if flexible && inLastRow < cols {
		lastSlotWidth = (area.Width - (inLastRow+1)*gap) / inLastRow
		lastWidth = capTo(lastSlotWidth, opts.MaxWidth)
	}

	out := make([]layout.Rect, n)
	for i := range n {
		row, col := i/cols, i%cols
		sw, w := slotWidth, width
		if flexible && row == lastRow && inLastRow < cols {
			col = i - lastRow*cols
			sw, w = lastSlotWidth, lastWidth
		}
		x := area.X + gap + col*(sw+gap) + (sw-w)/2
		y := area.Y + gap + row*(slotHeight+gap) + (slotHeight-height)/2
		out[i] = layout.Rect{X: x, Y: y, Width: w, Height: height}
	}
	return out, nil
}

func capTo(v, max int) int {
	if max > 0 && v > max {
		return max
	}
	return v
}

package arrange

import (
	"math/rand/v2"

	"github.com/1broseidon/layerctl/internal/layout"
)

// Overlaps reports whether two rectangles share any point, edges included.
func Overlaps(a, b layout.Rect) bool {
	return a.X <= b.X+b.Width && b.X <= a.X+a.Width &&
		a.Y <= b.Y+b.Height && b.Y <= a.Y+a.Height
}

// Placer picks random positions inside an area that avoid claimed
// rectangles.
type Placer struct {
	Area layout.Rect
	Rand *rand.Rand
	// MaxAttempts bounds the random search. Zero means the area in pixels,
	// capped at 100000.
	MaxAttempts int
}

// Place returns a width×height rectangle inside the area that overlaps none
// of claimed. It reports false when the surface does not fit or no free spot
// was found.
func (p *Placer) Place(width, height int, claimed []layout.Rect) (layout.Rect, bool) {
	if width <= 0 || height <= 0 || width > p.Area.Width || height > p.Area.Height {
		return layout.Rect{}, false
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = min(p.Area.Width*p.Area.Height, 100000)
	}
	intn := rand.IntN
	if p.Rand != nil {
		intn = p.Rand.IntN
	}

	for range attempts {
		r := layout.Rect{
			X:      p.Area.X + intn(p.Area.Width-width+1),
			Y:      p.Area.Y + intn(p.Area.Height-height+1),
			Width:  width,
			Height: height,
		}
		free := true
		for _, c := range claimed {
			if Overlaps(r, c) {
				free = false
				break
			}
		}
		if free {
			return r, true
		}
	}
	return layout.Rect{}, false
}

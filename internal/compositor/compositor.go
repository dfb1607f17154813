// Package compositor defines the boundary between the controller and the
// window system that actually draws surfaces.
package compositor

import (
	"context"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Output is a physical or virtual display.
type Output struct {
	ID     uint32      `json:"id"`
	Name   string      `json:"name"`
	Bounds layout.Rect `json:"bounds"`
}

// SurfaceInfo describes a client surface discovered by the backend.
type SurfaceInfo struct {
	ID      uint32      `json:"id"`
	PID     int         `json:"pid"`
	Title   string      `json:"title"`
	Bounds  layout.Rect `json:"bounds"`
	Visible bool        `json:"visible"`
}

// Sink receives compositor events. Implementations must not block for long;
// the controller queues every call onto its dispatch path.
type Sink interface {
	OutputAdded(out Output)
	OutputChanged(out Output)
	OutputRemoved(id uint32)

	SurfaceAdded(info SurfaceInfo)
	SurfaceConfigured(id uint32, width, height int)
	SurfaceContent(id uint32, available bool)
	SurfaceRemoved(id uint32)

	SeatAdded(name string, caps input.Device)
	SeatChanged(name string, caps input.Device)
	SeatRemoved(name string)
}

// Backend is a window system the controller drives.
type Backend interface {
	Name() string
	// Start reports the initial outputs, surfaces and seats to sink before
	// returning. Later events may arrive from any goroutine.
	Start(ctx context.Context, sink Sink) error
	// Apply makes a committed scene visible.
	Apply(snap layout.Snapshot) error
	Close() error
}

// Poller is implemented by backends that discover changes by rescanning
// instead of pushing events.
type Poller interface {
	Poll() error
}

// Focuser is implemented by backends that can move keyboard focus.
type Focuser interface {
	FocusSurface(id uint32) error
}

// Placement is the final on-screen state of one managed surface.
type Placement struct {
	SurfaceID uint32      `json:"surface_id"`
	Bounds    layout.Rect `json:"bounds"`
	Opacity   float64     `json:"opacity"`
	Visible   bool        `json:"visible"`
}

// Placements flattens a snapshot into per-surface placements, bottom to top.
// A surface destination is relative to its layer destination, which is
// relative to the output origin returned by origin. Only surfaces that sit in
// a layer assigned to a screen are included.
func Placements(snap layout.Snapshot, origin func(layout.ScreenState) (x, y int)) []Placement {
	var out []Placement
	for _, scr := range snap.Screens {
		ox, oy := 0, 0
		if origin != nil {
			ox, oy = origin(scr)
		}
		for _, lid := range scr.Layers {
			l, ok := snap.Layer(lid)
			if !ok {
				continue
			}
			for _, sid := range l.Surfaces {
				surf, ok := snap.Surface(sid)
				if !ok {
					continue
				}
				d := surf.Properties.DestRect
				out = append(out, Placement{
					SurfaceID: sid,
					Bounds: layout.Rect{
						X:      ox + l.Properties.DestRect.X + d.X,
						Y:      oy + l.Properties.DestRect.Y + d.Y,
						Width:  d.Width,
						Height: d.Height,
					},
					Opacity: surf.Properties.Opacity * l.Properties.Opacity,
					Visible: snap.Visible(sid),
				})
			}
		}
	}
	return out
}

package layout

import "slices"

// SurfaceState is one surface inside a Snapshot.
type SurfaceState struct {
	ID         uint32            `json:"id"`
	Layer      uint32            `json:"layer"`
	Properties SurfaceProperties `json:"properties"`
}

// LayerState is one layer inside a Snapshot.
type LayerState struct {
	ID         uint32          `json:"id"`
	Screen     uint32          `json:"screen"`
	Properties LayerProperties `json:"properties"`
	Surfaces   []uint32        `json:"surfaces"`
}

// ScreenState is one screen inside a Snapshot.
type ScreenState struct {
	ID         uint32           `json:"id"`
	Properties ScreenProperties `json:"properties"`
	Layers     []uint32         `json:"layers"`
}

// Snapshot is a consistent copy of the committed scene. Layer and Screen are
// InvalidID for detached objects.
type Snapshot struct {
	Screens  []ScreenState  `json:"screens"`
	Layers   []LayerState   `json:"layers"`
	Surfaces []SurfaceState `json:"surfaces"`
}

// Snapshot copies the committed state. Staged compositor values are not
// included.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap Snapshot
	s.screens.each(func(id uint32, scr *screen) {
		snap.Screens = append(snap.Screens, ScreenState{ID: id, Properties: scr.props, Layers: slices.Clone(scr.order)})
	})
	s.layers.each(func(id uint32, l *layer) {
		snap.Layers = append(snap.Layers, LayerState{ID: id, Screen: l.screen, Properties: l.cur, Surfaces: slices.Clone(l.order)})
	})
	s.surfaces.each(func(id uint32, surf *surface) {
		snap.Surfaces = append(snap.Surfaces, SurfaceState{ID: id, Layer: surf.layer, Properties: surf.cur})
	})
	return snap
}

func (snap Snapshot) Surface(id uint32) (SurfaceState, bool) {
	for _, st := range snap.Surfaces {
		if st.ID == id {
			return st, true
		}
	}
	return SurfaceState{}, false
}

func (snap Snapshot) Layer(id uint32) (LayerState, bool) {
	for _, st := range snap.Layers {
		if st.ID == id {
			return st, true
		}
	}
	return LayerState{}, false
}

func (snap Snapshot) Screen(id uint32) (ScreenState, bool) {
	for _, st := range snap.Screens {
		if st.ID == id {
			return st, true
		}
	}
	return ScreenState{}, false
}

// Visible reports whether a surface would be drawn: the surface, its layer and
// the layer's screen membership must all be in place, and both the surface and
// its layer must be visible.
func (snap Snapshot) Visible(surfaceID uint32) bool {
	surf, ok := snap.Surface(surfaceID)
	if !ok || !surf.Properties.Visibility || surf.Layer == InvalidID {
		return false
	}
	l, ok := snap.Layer(surf.Layer)
	if !ok || !l.Properties.Visibility || l.Screen == InvalidID {
		return false
	}
	return true
}

// StackOrder returns visible surfaces from bottom to top across all screens.
func (snap Snapshot) StackOrder() []uint32 {
	var out []uint32
	for _, scr := range snap.Screens {
		for _, lid := range scr.Layers {
			l, ok := snap.Layer(lid)
			if !ok {
				continue
			}
			for _, sid := range l.Surfaces {
				if snap.Visible(sid) {
					out = append(out, sid)
				}
			}
		}
	}
	return out
}

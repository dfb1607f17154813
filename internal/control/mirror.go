package control

import (
	"slices"
	"sort"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Screen is the client view of a screen.
type Screen struct {
	ID uint32 `json:"id"`
	layout.ScreenProperties
	Layers []uint32 `json:"layers"`
}

// Layer is the client view of a layer. Screen is InvalidID when the layer is
// not on a screen.
type Layer struct {
	ID uint32 `json:"id"`
	layout.LayerProperties
	Screen   uint32   `json:"screen"`
	Surfaces []uint32 `json:"surfaces"`
}

// Surface is the client view of a surface. Layer is InvalidID when the
// surface is not in a layer.
type Surface struct {
	ID uint32 `json:"id"`
	layout.SurfaceProperties
	Layer    uint32       `json:"layer"`
	Focus    input.Device `json:"focus"`
	Accepted []string     `json:"accepted_seats"`
}

// SceneState is a full copy of the mirrored scene.
type SceneState struct {
	Screens  []Screen     `json:"screens"`
	Layers   []Layer      `json:"layers"`
	Surfaces []Surface    `json:"surfaces"`
	Seats    []input.Seat `json:"seats"`
}

// mirror is the client-side copy of the daemon's scene, fed by session
// events. Callers hold Context.mu.
type mirror struct {
	screens  map[uint32]*Screen
	layers   map[uint32]*Layer
	surfaces map[uint32]*Surface
	order    map[layout.Kind][]uint32
	seats    map[string]input.Device
	accepted map[uint32]map[string]struct{}
}

func newMirror() *mirror {
	return &mirror{
		screens:  make(map[uint32]*Screen),
		layers:   make(map[uint32]*Layer),
		surfaces: make(map[uint32]*Surface),
		order:    make(map[layout.Kind][]uint32),
		seats:    make(map[string]input.Device),
		accepted: make(map[uint32]map[string]struct{}),
	}
}

func (m *mirror) has(kind layout.Kind, id uint32) bool {
	switch kind {
	case layout.KindScreen:
		_, ok := m.screens[id]
		return ok
	case layout.KindLayer:
		_, ok := m.layers[id]
		return ok
	case layout.KindSurface:
		_, ok := m.surfaces[id]
		return ok
	}
	return false
}

func (m *mirror) ids(kind layout.Kind) []uint32 {
	return slices.Clone(m.order[kind])
}

func (m *mirror) added(kind layout.Kind, id uint32) {
	if !slices.Contains(m.order[kind], id) {
		m.order[kind] = append(m.order[kind], id)
	}
}

func (m *mirror) removed(kind layout.Kind, id uint32) {
	m.order[kind] = slices.DeleteFunc(m.order[kind], func(v uint32) bool { return v == id })
}

// apply folds one event into the mirror. It returns the decoded payload for
// callback fan-out, or an error if the payload is malformed.
func (m *mirror) apply(ev *ipc.Event) (any, error) {
	switch ev.Type {
	case ipc.EventScreenCreated, ipc.EventScreenProperties:
		var p ipc.ScreenPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if scr, ok := m.screens[p.ID]; ok {
			scr.ScreenProperties = p.Properties
		} else {
			m.screens[p.ID] = &Screen{ID: p.ID, ScreenProperties: p.Properties}
			m.added(layout.KindScreen, p.ID)
		}
		return p, nil

	case ipc.EventLayerCreated, ipc.EventLayerProperties:
		var p ipc.LayerPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if l, ok := m.layers[p.ID]; ok {
			l.LayerProperties = p.Properties
		} else {
			m.layers[p.ID] = &Layer{ID: p.ID, LayerProperties: p.Properties, Screen: layout.InvalidID}
			m.added(layout.KindLayer, p.ID)
		}
		return p, nil

	case ipc.EventSurfaceCreated, ipc.EventSurfaceProperties:
		var p ipc.SurfacePayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if s, ok := m.surfaces[p.ID]; ok {
			s.SurfaceProperties = p.Properties
		} else {
			m.surfaces[p.ID] = &Surface{ID: p.ID, SurfaceProperties: p.Properties, Layer: layout.InvalidID}
			m.accepted[p.ID] = make(map[string]struct{})
			m.added(layout.KindSurface, p.ID)
		}
		return p, nil

	case ipc.EventScreenDestroyed:
		var p ipc.ObjectPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if scr, ok := m.screens[p.ID]; ok {
			for _, lid := range scr.Layers {
				if l, ok := m.layers[lid]; ok {
					l.Screen = layout.InvalidID
				}
			}
		}
		delete(m.screens, p.ID)
		m.removed(layout.KindScreen, p.ID)
		return p, nil

	case ipc.EventLayerDestroyed:
		var p ipc.ObjectPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if l, ok := m.layers[p.ID]; ok {
			if scr, ok := m.screens[l.Screen]; ok {
				scr.Layers = slices.DeleteFunc(scr.Layers, func(v uint32) bool { return v == p.ID })
			}
			for _, sid := range l.Surfaces {
				if s, ok := m.surfaces[sid]; ok {
					s.Layer = layout.InvalidID
				}
			}
		}
		delete(m.layers, p.ID)
		m.removed(layout.KindLayer, p.ID)
		return p, nil

	case ipc.EventSurfaceDestroyed:
		var p ipc.ObjectPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if s, ok := m.surfaces[p.ID]; ok {
			if l, ok := m.layers[s.Layer]; ok {
				l.Surfaces = slices.DeleteFunc(l.Surfaces, func(v uint32) bool { return v == p.ID })
			}
		}
		delete(m.surfaces, p.ID)
		delete(m.accepted, p.ID)
		m.removed(layout.KindSurface, p.ID)
		return p, nil

	case ipc.EventRenderOrder:
		var p ipc.RenderOrderPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		m.setOrder(p)
		return p, nil

	case ipc.EventSeatCreated, ipc.EventSeatCapabilities:
		var p ipc.SeatPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		m.seats[p.Name] = p.Capabilities
		return p, nil

	case ipc.EventSeatDestroyed:
		var p ipc.SeatPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		delete(m.seats, p.Name)
		for _, set := range m.accepted {
			delete(set, p.Name)
		}
		return p, nil

	case ipc.EventInputAcceptance:
		var p ipc.AcceptancePayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if set, ok := m.accepted[p.SurfaceID]; ok {
			if p.Accepted {
				set[p.Seat] = struct{}{}
			} else {
				delete(set, p.Seat)
			}
		}
		return p, nil

	case ipc.EventInputFocus:
		var p ipc.FocusPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		if s, ok := m.surfaces[p.SurfaceID]; ok {
			if p.Enabled {
				s.Focus |= p.Devices
			} else {
				s.Focus &^= p.Devices
			}
		}
		return p, nil

	case ipc.EventError:
		var p ipc.ErrorPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// setOrder installs a render order, detaching each child from its previous
// parent first.
func (m *mirror) setOrder(p ipc.RenderOrderPayload) {
	switch p.Kind {
	case layout.KindScreen:
		scr, ok := m.screens[p.Parent]
		if !ok {
			return
		}
		for _, lid := range scr.Layers {
			if l, ok := m.layers[lid]; ok {
				l.Screen = layout.InvalidID
			}
		}
		for _, lid := range p.Children {
			l, ok := m.layers[lid]
			if !ok {
				continue
			}
			if prev, ok := m.screens[l.Screen]; ok && l.Screen != p.Parent {
				prev.Layers = slices.DeleteFunc(prev.Layers, func(v uint32) bool { return v == lid })
			}
			l.Screen = p.Parent
		}
		scr.Layers = slices.Clone(p.Children)

	case layout.KindLayer:
		l, ok := m.layers[p.Parent]
		if !ok {
			return
		}
		for _, sid := range l.Surfaces {
			if s, ok := m.surfaces[sid]; ok {
				s.Layer = layout.InvalidID
			}
		}
		for _, sid := range p.Children {
			s, ok := m.surfaces[sid]
			if !ok {
				continue
			}
			if prev, ok := m.layers[s.Layer]; ok && s.Layer != p.Parent {
				prev.Surfaces = slices.DeleteFunc(prev.Surfaces, func(v uint32) bool { return v == sid })
			}
			s.Layer = p.Parent
		}
		l.Surfaces = slices.Clone(p.Children)
	}
}

func (m *mirror) screen(id uint32) (Screen, bool) {
	scr, ok := m.screens[id]
	if !ok {
		return Screen{}, false
	}
	out := *scr
	out.Layers = slices.Clone(scr.Layers)
	return out, true
}

func (m *mirror) layer(id uint32) (Layer, bool) {
	l, ok := m.layers[id]
	if !ok {
		return Layer{}, false
	}
	out := *l
	out.Surfaces = slices.Clone(l.Surfaces)
	return out, true
}

func (m *mirror) surface(id uint32) (Surface, bool) {
	s, ok := m.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	out := *s
	out.Accepted = m.acceptedSeats(id)
	return out, true
}

func (m *mirror) acceptedSeats(id uint32) []string {
	set := m.accepted[id]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *mirror) seatList() []input.Seat {
	out := make([]input.Seat, 0, len(m.seats))
	for name, caps := range m.seats {
		out = append(out, input.Seat{Name: name, Capabilities: caps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *mirror) state() SceneState {
	var st SceneState
	for _, id := range m.order[layout.KindScreen] {
		scr, _ := m.screen(id)
		st.Screens = append(st.Screens, scr)
	}
	for _, id := range m.order[layout.KindLayer] {
		l, _ := m.layer(id)
		st.Layers = append(st.Layers, l)
	}
	for _, id := range m.order[layout.KindSurface] {
		s, _ := m.surface(id)
		st.Surfaces = append(st.Surfaces, s)
	}
	st.Seats = m.seatList()
	return st
}

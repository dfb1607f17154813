package layout

import (
	"fmt"
	"sync"
)

// SurfaceListener receives one call per commit pass in which a surface changed.
type SurfaceListener func(id uint32, props SurfaceProperties, mask Mask)

// LayerListener receives one call per commit pass in which a layer changed.
type LayerListener func(id uint32, props LayerProperties, mask Mask)

// GlobalListener receives lifecycle events for every object.
type GlobalListener func(kind Kind, id uint32, created bool)

// Watcher observes every change in the scene. Unlike listeners, any number of
// watchers can be attached.
type Watcher interface {
	ObjectCreated(kind Kind, id uint32)
	ObjectDestroyed(kind Kind, id uint32)
	SurfaceChanged(id uint32, props SurfaceProperties, mask Mask)
	LayerChanged(id uint32, props LayerProperties, mask Mask)
	ScreenChanged(id uint32, props ScreenProperties)
	RenderOrderChanged(kind Kind, parent uint32, children []uint32)
}

// Options configures a Scene.
type Options struct {
	// SurfaceIDBase and LayerIDBase are where automatic id assignment starts.
	SurfaceIDBase uint32
	LayerIDBase   uint32
}

type surface struct {
	cur      SurfaceProperties
	pending  SurfaceProperties
	staged   bool
	mask     Mask
	layer    uint32
	listener SurfaceListener
}

type layer struct {
	cur        LayerProperties
	pending    LayerProperties
	staged     bool
	mask       Mask
	screen     uint32
	order      []uint32
	orderDirty bool
	listener   LayerListener
}

type screen struct {
	props      ScreenProperties
	propsDirty bool
	order      []uint32
	orderDirty bool
}

// Scene holds the authoritative surface, layer and screen state.
//
// All methods are safe for concurrent use. Listener and watcher callbacks run
// after the scene lock is released, on the goroutine that made the call, so
// a callback may call back into the scene.
type Scene struct {
	mu       sync.Mutex
	opts     Options
	surfaces *registry[*surface]
	layers   *registry[*layer]
	screens  *registry[*screen]

	global      GlobalListener
	watchers    map[int]Watcher
	watcherSeq  int
	watchOrder  []int
	commitCount uint64
}

// NewScene creates an empty scene.
func NewScene(opts Options) *Scene {
	return &Scene{
		opts:     opts,
		surfaces: newRegistry[*surface](),
		layers:   newRegistry[*layer](),
		screens:  newRegistry[*screen](),
		watchers: make(map[int]Watcher),
	}
}

// batch collects callbacks while the lock is held.
type batch struct {
	calls []func()
}

func (b *batch) add(fn func()) {
	b.calls = append(b.calls, fn)
}

func (s *Scene) update(fn func(b *batch) error) error {
	var b batch
	s.mu.Lock()
	err := fn(&b)
	s.mu.Unlock()
	for _, call := range b.calls {
		call()
	}
	return err
}

func (s *Scene) watcherList() []Watcher {
	out := make([]Watcher, 0, len(s.watchOrder))
	for _, key := range s.watchOrder {
		out = append(out, s.watchers[key])
	}
	return out
}

func (s *Scene) lifecycle(b *batch, kind Kind, id uint32, created bool) {
	if g := s.global; g != nil {
		b.add(func() { g(kind, id, created) })
	}
	for _, w := range s.watcherList() {
		if created {
			b.add(func() { w.ObjectCreated(kind, id) })
		} else {
			b.add(func() { w.ObjectDestroyed(kind, id) })
		}
	}
}

// Watch attaches w to the scene and returns a function that detaches it.
func (s *Scene) Watch(w Watcher) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherSeq++
	key := s.watcherSeq
	s.watchers[key] = w
	s.watchOrder = append(s.watchOrder, key)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, key)
		for i, k := range s.watchOrder {
			if k == key {
				s.watchOrder = append(s.watchOrder[:i], s.watchOrder[i+1:]...)
				break
			}
		}
	}
}

// SetGlobalListener installs the lifecycle listener. A nil listener removes it.
func (s *Scene) SetGlobalListener(fn GlobalListener) {
	s.mu.Lock()
	s.global = fn
	s.mu.Unlock()
}

// CreateSurface registers a surface. With id == InvalidID the next unused id
// starting at Options.SurfaceIDBase is assigned.
func (s *Scene) CreateSurface(id uint32, props SurfaceProperties) (uint32, error) {
	err := s.update(func(b *batch) error {
		if id == InvalidID {
			next, ok := s.surfaces.nextFree(s.opts.SurfaceIDBase)
			if !ok {
				return fmt.Errorf("surface: %w: no free id", ErrInvalidID)
			}
			id = next
		}
		if !s.surfaces.add(id, &surface{cur: props, layer: InvalidID}) {
			return fmt.Errorf("surface %d: %w", id, ErrDuplicateID)
		}
		s.lifecycle(b, KindSurface, id, true)
		return nil
	})
	if err != nil {
		return InvalidID, err
	}
	return id, nil
}

// CreateLayer registers a layer with the given dimensions. With id ==
// InvalidID the next unused id starting at Options.LayerIDBase is assigned.
func (s *Scene) CreateLayer(id uint32, width, height int) (uint32, error) {
	if width < 0 || height < 0 {
		return InvalidID, fmt.Errorf("layer size %dx%d: %w", width, height, ErrInvalidArguments)
	}
	err := s.update(func(b *batch) error {
		if id == InvalidID {
			next, ok := s.layers.nextFree(s.opts.LayerIDBase)
			if !ok {
				return fmt.Errorf("layer: %w: no free id", ErrInvalidID)
			}
			id = next
		}
		l := &layer{cur: DefaultLayerProperties(width, height), screen: InvalidID}
		if !s.layers.add(id, l) {
			return fmt.Errorf("layer %d: %w", id, ErrDuplicateID)
		}
		s.lifecycle(b, KindLayer, id, true)
		return nil
	})
	if err != nil {
		return InvalidID, err
	}
	return id, nil
}

// CreateScreen registers a screen. Screens always carry an explicit id.
func (s *Scene) CreateScreen(id uint32, props ScreenProperties) error {
	if id == InvalidID {
		return fmt.Errorf("screen: %w", ErrInvalidID)
	}
	return s.update(func(b *batch) error {
		if !s.screens.add(id, &screen{props: props}) {
			return fmt.Errorf("screen %d: %w", id, ErrDuplicateID)
		}
		s.lifecycle(b, KindScreen, id, true)
		return nil
	})
}

// Destroy removes an object and purges it from every render order.
func (s *Scene) Destroy(kind Kind, id uint32) error {
	return s.update(func(b *batch) error {
		switch kind {
		case KindSurface:
			surf, ok := s.surfaces.remove(id)
			if !ok {
				return fmt.Errorf("surface %d: %w", id, ErrNotFound)
			}
			if l, ok := s.layers.get(surf.layer); ok {
				l.order = removeID(l.order, id)
				l.orderDirty = true
			}
		case KindLayer:
			l, ok := s.layers.remove(id)
			if !ok {
				return fmt.Errorf("layer %d: %w", id, ErrNotFound)
			}
			if scr, ok := s.screens.get(l.screen); ok {
				scr.order = removeID(scr.order, id)
				scr.orderDirty = true
			}
			for _, child := range l.order {
				if surf, ok := s.surfaces.get(child); ok {
					surf.layer = InvalidID
				}
			}
		case KindScreen:
			scr, ok := s.screens.remove(id)
			if !ok {
				return fmt.Errorf("screen %d: %w", id, ErrNotFound)
			}
			for _, child := range scr.order {
				if l, ok := s.layers.get(child); ok {
					l.screen = InvalidID
				}
			}
		default:
			return fmt.Errorf("%v: %w", kind, ErrInvalidArguments)
		}
		s.lifecycle(b, kind, id, false)
		return nil
	})
}

// Has reports whether an object exists.
func (s *Scene) Has(kind Kind, id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindSurface:
		return s.surfaces.has(id)
	case KindLayer:
		return s.layers.has(id)
	case KindScreen:
		return s.screens.has(id)
	}
	return false
}

// List returns the ids of one collection in creation order. This is also the
// default render order used until an explicit order is installed.
func (s *Scene) List(kind Kind) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindSurface:
		return s.surfaces.ids()
	case KindLayer:
		return s.layers.ids()
	case KindScreen:
		return s.screens.ids()
	}
	return nil
}

// Surface returns the committed properties of a surface.
func (s *Scene) Surface(id uint32) (SurfaceProperties, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return SurfaceProperties{}, false
	}
	return surf.cur, true
}

// SurfaceLayer returns the layer a surface belongs to.
func (s *Scene) SurfaceLayer(id uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok || surf.layer == InvalidID {
		return InvalidID, false
	}
	return surf.layer, true
}

// Layer returns the committed properties of a layer.
func (s *Scene) Layer(id uint32) (LayerProperties, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok {
		return LayerProperties{}, false
	}
	return l.cur, true
}

// LayerScreen returns the screen a layer belongs to.
func (s *Scene) LayerScreen(id uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok || l.screen == InvalidID {
		return InvalidID, false
	}
	return l.screen, true
}

// Screen returns the properties of a screen.
func (s *Scene) Screen(id uint32) (ScreenProperties, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(id)
	if !ok {
		return ScreenProperties{}, false
	}
	return scr.props, true
}

// UpdateScreen replaces the properties of a screen. Watchers see the change
// at the next commit.
func (s *Scene) UpdateScreen(id uint32, props ScreenProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(id)
	if !ok {
		return fmt.Errorf("screen %d: %w", id, ErrNotFound)
	}
	if scr.props != props {
		scr.props = props
		scr.propsDirty = true
	}
	return nil
}

// Counts returns the number of surfaces, layers and screens.
func (s *Scene) Counts() (surfaces, layers, screens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaces.len(), s.layers.len(), s.screens.len()
}

// Commits returns how many commit passes have run.
func (s *Scene) Commits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCount
}

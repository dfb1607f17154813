package layout

import (
	"errors"
	"math"
	"slices"
	"testing"
)

type layerNote struct {
	id    uint32
	props LayerProperties
	mask  Mask
}

type surfaceNote struct {
	id    uint32
	props SurfaceProperties
	mask  Mask
}

func TestLayerListener_ScenarioCreateSetDestAndVisibility(t *testing.T) {
	s := NewScene(Options{})
	if _, err := s.CreateLayer(600, 640, 480); err != nil {
		t.Fatalf("CreateLayer: %v", err)
	}
	var notes []layerNote
	if err := s.SetLayerListener(600, func(id uint32, p LayerProperties, m Mask) {
		notes = append(notes, layerNote{id, p, m})
	}); err != nil {
		t.Fatal(err)
	}

	s.SetLayerDestRect(600, Rect{X: 0, Y: 0, Width: 640, Height: 480})
	s.SetLayerVisibility(600, true)
	s.Commit()

	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	n := notes[0]
	if n.mask != MaskDestRect|MaskVisibility {
		t.Fatalf("mask = %v, want dest_rect|visibility", n.mask)
	}
	if !n.props.Visibility || n.props.DestRect.Width != 640 {
		t.Fatalf("snapshot = %+v", n.props)
	}
}

func TestSurfaceListener_OneBitPerSingleMutation(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	var notes []surfaceNote
	s.SetSurfaceListener(1, func(id uint32, p SurfaceProperties, m Mask) {
		notes = append(notes, surfaceNote{id, p, m})
	})

	s.SetSurfaceOpacity(1, 0.25)
	s.Commit()
	s.Commit()

	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].mask != MaskOpacity {
		t.Fatalf("mask = %v, want opacity", notes[0].mask)
	}
}

func TestSetter_UnchangedValueDoesNotNotify(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	calls := 0
	s.SetSurfaceListener(1, func(uint32, SurfaceProperties, Mask) { calls++ })

	s.SetSurfaceOpacity(1, 1)
	s.SetSurfaceType(1, SurfaceTypeDesktop)
	if n := s.Commit(); n != 0 {
		t.Fatalf("Commit changed = %d, want 0", n)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
	props, _ := s.Surface(1)
	if props.Type != SurfaceTypeDesktop {
		t.Fatalf("Type = %v, want desktop", props.Type)
	}
}

func TestOpacity_BitExactComparison(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	var masks []Mask
	s.SetSurfaceListener(1, func(_ uint32, _ SurfaceProperties, m Mask) { masks = append(masks, m) })

	s.SetSurfaceOpacity(1, math.Nextafter(1, 0))
	s.Commit()
	if !slices.Equal(masks, []Mask{MaskOpacity}) {
		t.Fatalf("masks = %v, want [opacity]", masks)
	}
}

func TestOpacity_StoredWithoutClamping(t *testing.T) {
	s := NewScene(Options{})
	s.CreateLayer(1, 1, 1)
	s.SetLayerOpacity(1, 1.5)
	props, _ := s.Layer(1)
	if props.Opacity != 1.5 {
		t.Fatalf("Opacity = %v, want 1.5", props.Opacity)
	}
}

func TestStage_InvisibleUntilCommit(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	var notes []surfaceNote
	s.SetSurfaceListener(1, func(id uint32, p SurfaceProperties, m Mask) {
		notes = append(notes, surfaceNote{id, p, m})
	})

	if err := s.ConfigureSurface(1, 320, 240); err != nil {
		t.Fatal(err)
	}
	s.StageSurface(1, func(p *SurfaceProperties) {
		p.DestRect = Rect{Width: 320, Height: 240}
	})
	if props, _ := s.Surface(1); props.OrigSourceWidth != 0 || props.DestRect.Width != 0 {
		t.Fatalf("staged values visible before commit: %+v", props)
	}

	s.Commit()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if want := MaskConfigured | MaskDestRect; notes[0].mask != want {
		t.Fatalf("mask = %v, want %v", notes[0].mask, want)
	}
	if notes[0].props.OrigSourceWidth != 320 {
		t.Fatalf("snapshot = %+v", notes[0].props)
	}
}

func TestStage_ControlWriteSurvivesCommit(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())

	s.SetSurfaceContent(1, true)
	s.SetSurfaceVisibility(1, true)
	s.Commit()

	props, _ := s.Surface(1)
	if !props.Visibility || !props.ContentAvailable {
		t.Fatalf("props = %+v, want visible with content", props)
	}
}

func TestSetter_UnknownIDFailsWithoutNotification(t *testing.T) {
	s := NewScene(Options{})
	w := &recordingWatcher{}
	s.Watch(w)

	if err := s.SetLayerVisibility(42, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	s.Commit()
	if len(w.layers) != 0 {
		t.Fatalf("watcher saw %d layer changes, want 0", len(w.layers))
	}
}

func TestSetter_RejectsNegativeRect(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	if err := s.SetSurfaceSourceRect(1, Rect{X: -1, Width: 1, Height: 1}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("err = %v, want ErrInvalidArguments", err)
	}
}

func TestFrameSurface_NoNotification(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	calls := 0
	s.SetSurfaceListener(1, func(uint32, SurfaceProperties, Mask) { calls++ })
	s.FrameSurface(1)
	s.FrameSurface(1)
	s.Commit()
	props, _ := s.Surface(1)
	if props.FrameCounter != 2 || calls != 0 {
		t.Fatalf("FrameCounter = %d calls = %d, want 2 and 0", props.FrameCounter, calls)
	}
}

func TestListeners_ReplaceAndRemove(t *testing.T) {
	s := NewScene(Options{})
	s.CreateLayer(1, 1, 1)
	first, second := 0, 0
	s.SetLayerListener(1, func(uint32, LayerProperties, Mask) { first++ })
	s.SetLayerListener(1, func(uint32, LayerProperties, Mask) { second++ })
	s.SetLayerVisibility(1, true)
	s.Commit()
	if first != 0 || second != 1 {
		t.Fatalf("first = %d second = %d, want 0 and 1", first, second)
	}

	if err := s.SetLayerListener(1, nil); err != nil {
		t.Fatalf("nil listener: %v", err)
	}
	if err := s.RemoveLayerListener(1); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("remove without listener err = %v, want ErrInvalidArguments", err)
	}
	if err := s.SetLayerListener(9, func(uint32, LayerProperties, Mask) {}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("register on missing err = %v, want ErrInvalidArguments", err)
	}
}

func TestListener_MayCallBackIntoScene(t *testing.T) {
	s := NewScene(Options{})
	s.CreateSurface(1, DefaultSurfaceProperties())
	var seen SurfaceProperties
	s.SetSurfaceListener(1, func(id uint32, _ SurfaceProperties, _ Mask) {
		seen, _ = s.Surface(id)
	})
	s.SetSurfaceVisibility(1, true)
	s.Commit()
	if !seen.Visibility {
		t.Fatal("listener did not observe committed state")
	}
}

type recordingWatcher struct {
	created  []uint32
	layers   []layerNote
	surfaces []surfaceNote
	orders   map[uint32][]uint32
}

func (w *recordingWatcher) ObjectCreated(_ Kind, id uint32) { w.created = append(w.created, id) }
func (w *recordingWatcher) ObjectDestroyed(Kind, uint32) {}
func (w *recordingWatcher) SurfaceChanged(id uint32, p SurfaceProperties, m Mask) {
	w.surfaces = append(w.surfaces, surfaceNote{id, p, m})
}
func (w *recordingWatcher) LayerChanged(id uint32, p LayerProperties, m Mask) {
	w.layers = append(w.layers, layerNote{id, p, m})
}
func (w *recordingWatcher) ScreenChanged(uint32, ScreenProperties) {}
func (w *recordingWatcher) RenderOrderChanged(_ Kind, parent uint32, children []uint32) {
	if w.orders == nil {
		w.orders = make(map[uint32][]uint32)
	}
	w.orders[parent] = children
}

func TestWatch_RenderOrderReportedAtCommit(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1}, []uint32{11, 12})
	w := &recordingWatcher{}
	cancel := s.Watch(w)

	s.SetLayerRenderOrder(1, []uint32{12, 11})
	if len(w.orders) != 0 {
		t.Fatal("render order reported before commit")
	}
	s.Commit()
	if got := w.orders[1]; !slices.Equal(got, []uint32{12, 11}) {
		t.Fatalf("reported order = %v, want [12 11]", got)
	}

	cancel()
	s.CreateSurface(13, DefaultSurfaceProperties())
	if len(w.created) != 0 {
		t.Fatalf("cancelled watcher saw %v", w.created)
	}
}

func TestSnapshot_StackOrder(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1, 2}, []uint32{11, 12, 21})
	s.CreateScreen(1000, ScreenProperties{Width: 100, Height: 100})
	s.SetLayerRenderOrder(1, []uint32{11, 12})
	s.SetLayerRenderOrder(2, []uint32{21})
	s.SetScreenRenderOrder(1000, []uint32{2, 1})
	for _, id := range []uint32{11, 12, 21} {
		s.SetSurfaceVisibility(id, true)
	}
	s.SetLayerVisibility(1, true)
	s.SetLayerVisibility(2, true)
	s.SetSurfaceVisibility(12, false)

	got := s.Snapshot().StackOrder()
	if !slices.Equal(got, []uint32{21, 11}) {
		t.Fatalf("StackOrder = %v, want [21 11]", got)
	}
}

package layout

import (
	"errors"
	"slices"
	"testing"
)

type lifecycleEvent struct {
	kind    Kind
	id      uint32
	created bool
}

func newTestScene(t *testing.T) (*Scene, *[]lifecycleEvent) {
	t.Helper()
	s := NewScene(Options{})
	var events []lifecycleEvent
	s.SetGlobalListener(func(kind Kind, id uint32, created bool) {
		events = append(events, lifecycleEvent{kind, id, created})
	})
	return s, &events
}

func TestCreate_LookupSucceedsAndGlobalListenerFiresOnce(t *testing.T) {
	s, events := newTestScene(t)

	id, err := s.CreateSurface(10, DefaultSurfaceProperties())
	if err != nil {
		t.Fatalf("CreateSurface error: %v", err)
	}
	if id != 10 {
		t.Fatalf("CreateSurface id = %d, want 10", id)
	}
	if _, ok := s.Surface(10); !ok {
		t.Fatal("Surface(10) not found after create")
	}
	if _, err := s.CreateLayer(600, 640, 480); err != nil {
		t.Fatalf("CreateLayer error: %v", err)
	}
	if err := s.CreateScreen(1000, ScreenProperties{ConnectorName: "HDMI-1", Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("CreateScreen error: %v", err)
	}

	want := []lifecycleEvent{
		{KindSurface, 10, true},
		{KindLayer, 600, true},
		{KindScreen, 1000, true},
	}
	if !slices.Equal(*events, want) {
		t.Fatalf("events = %v, want %v", *events, want)
	}
}

func TestCreate_DuplicateIDLeavesRegistryUnchanged(t *testing.T) {
	s, events := newTestScene(t)
	if _, err := s.CreateLayer(5, 100, 100); err != nil {
		t.Fatalf("CreateLayer error: %v", err)
	}
	if err := s.SetLayerOpacity(5, 0.5); err != nil {
		t.Fatalf("SetLayerOpacity error: %v", err)
	}

	_, err := s.CreateLayer(5, 200, 200)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("CreateLayer duplicate err = %v, want ErrDuplicateID", err)
	}
	props, _ := s.Layer(5)
	if props.OrigSourceWidth != 100 || props.Opacity != 0.5 {
		t.Fatalf("layer changed after failed create: %+v", props)
	}
	if len(*events) != 1 {
		t.Fatalf("lifecycle events = %d, want 1", len(*events))
	}
	if got := s.List(KindLayer); !slices.Equal(got, []uint32{5}) {
		t.Fatalf("List(layer) = %v, want [5]", got)
	}
}

func TestCreate_InvalidIDAutoAssignsSkippingTaken(t *testing.T) {
	s := NewScene(Options{})
	for _, id := range []uint32{0, 1, 3} {
		if _, err := s.CreateLayer(id, 1, 1); err != nil {
			t.Fatalf("CreateLayer(%d) error: %v", id, err)
		}
	}

	got, err := s.CreateLayer(InvalidID, 1, 1)
	if err != nil {
		t.Fatalf("CreateLayer(InvalidID) error: %v", err)
	}
	if got != 2 {
		t.Fatalf("auto id = %d, want 2", got)
	}
	got, _ = s.CreateLayer(InvalidID, 1, 1)
	if got != 4 {
		t.Fatalf("auto id = %d, want 4", got)
	}
}

func TestCreateScreen_RejectsInvalidID(t *testing.T) {
	s := NewScene(Options{})
	if err := s.CreateScreen(InvalidID, ScreenProperties{}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("CreateScreen(InvalidID) err = %v, want ErrInvalidID", err)
	}
}

func TestCreateLayer_NegativeSize(t *testing.T) {
	s := NewScene(Options{})
	if _, err := s.CreateLayer(1, -1, 10); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("err = %v, want ErrInvalidArguments", err)
	}
	if s.Has(KindLayer, 1) {
		t.Fatal("layer created despite invalid size")
	}
}

func TestList_InsertionOrder(t *testing.T) {
	s := NewScene(Options{})
	for _, id := range []uint32{30, 10, 20} {
		if _, err := s.CreateSurface(id, DefaultSurfaceProperties()); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Destroy(KindSurface, 10); err != nil {
		t.Fatal(err)
	}
	if got := s.List(KindSurface); !slices.Equal(got, []uint32{30, 20}) {
		t.Fatalf("List = %v, want [30 20]", got)
	}
}

func TestDestroy_Unknown(t *testing.T) {
	s, events := newTestScene(t)
	if err := s.Destroy(KindSurface, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Destroy err = %v, want ErrNotFound", err)
	}
	if len(*events) != 0 {
		t.Fatalf("events = %v, want none", *events)
	}
}

func TestDestroy_PurgesRenderOrdersAndListeners(t *testing.T) {
	s, events := newTestScene(t)
	s.CreateLayer(1, 10, 10)
	s.CreateSurface(7, DefaultSurfaceProperties())
	s.CreateSurface(8, DefaultSurfaceProperties())
	if err := s.SetLayerRenderOrder(1, []uint32{7, 8}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSurfaceListener(7, func(uint32, SurfaceProperties, Mask) {}); err != nil {
		t.Fatal(err)
	}

	if err := s.Destroy(KindSurface, 7); err != nil {
		t.Fatal(err)
	}
	order, _ := s.LayerRenderOrder(1)
	if !slices.Equal(order, []uint32{8}) {
		t.Fatalf("render order = %v, want [8]", order)
	}
	if err := s.SetSurfaceListener(7, func(uint32, SurfaceProperties, Mask) {}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("SetSurfaceListener on destroyed err = %v, want ErrInvalidArguments", err)
	}
	if err := s.RemoveSurfaceListener(7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveSurfaceListener on destroyed err = %v, want ErrNotFound", err)
	}
	last := (*events)[len(*events)-1]
	if last != (lifecycleEvent{KindSurface, 7, false}) {
		t.Fatalf("last event = %v, want surface 7 destroyed", last)
	}
}

func TestDestroyLayer_DetachesFromScreenAndOrphansSurfaces(t *testing.T) {
	s := NewScene(Options{})
	s.CreateScreen(1000, ScreenProperties{Width: 800, Height: 600})
	s.CreateLayer(1, 10, 10)
	s.CreateLayer(2, 10, 10)
	s.CreateSurface(7, DefaultSurfaceProperties())
	s.AddSurfaceToLayer(1, 7)
	s.SetScreenRenderOrder(1000, []uint32{1, 2})

	if err := s.Destroy(KindLayer, 1); err != nil {
		t.Fatal(err)
	}
	order, _ := s.ScreenRenderOrder(1000)
	if !slices.Equal(order, []uint32{2}) {
		t.Fatalf("screen order = %v, want [2]", order)
	}
	if _, ok := s.SurfaceLayer(7); ok {
		t.Fatal("surface 7 still attached to destroyed layer")
	}
}

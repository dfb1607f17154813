package layout

import (
	"errors"
	"slices"
	"testing"
)

func sceneWithSurfaces(t *testing.T, layers []uint32, surfaces []uint32) *Scene {
	t.Helper()
	s := NewScene(Options{})
	for _, id := range layers {
		if _, err := s.CreateLayer(id, 100, 100); err != nil {
			t.Fatalf("CreateLayer(%d): %v", id, err)
		}
	}
	for _, id := range surfaces {
		if _, err := s.CreateSurface(id, DefaultSurfaceProperties()); err != nil {
			t.Fatalf("CreateSurface(%d): %v", id, err)
		}
	}
	return s
}

func TestSetLayerRenderOrder_RoundTrip(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1}, []uint32{11, 12, 13})

	if err := s.SetLayerRenderOrder(1, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLayerRenderOrder(1, []uint32{13, 11, 12}); err != nil {
		t.Fatal(err)
	}
	got, ok := s.LayerRenderOrder(1)
	if !ok || !slices.Equal(got, []uint32{13, 11, 12}) {
		t.Fatalf("LayerRenderOrder = %v, want [13 11 12]", got)
	}
}

func TestSetLayerRenderOrder_MoveIsExclusive(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1, 2}, []uint32{11, 12})
	s.SetLayerRenderOrder(1, []uint32{11, 12})

	if err := s.SetLayerRenderOrder(2, []uint32{11}); err != nil {
		t.Fatal(err)
	}
	a, _ := s.LayerRenderOrder(1)
	b, _ := s.LayerRenderOrder(2)
	if !slices.Equal(a, []uint32{12}) {
		t.Fatalf("layer 1 order = %v, want [12]", a)
	}
	if !slices.Equal(b, []uint32{11}) {
		t.Fatalf("layer 2 order = %v, want [11]", b)
	}
	if owner, _ := s.SurfaceLayer(11); owner != 2 {
		t.Fatalf("SurfaceLayer(11) = %d, want 2", owner)
	}
}

func TestSetLayerRenderOrder_AllOrNothing(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1}, []uint32{11, 12})
	s.SetLayerRenderOrder(1, []uint32{12})

	err := s.SetLayerRenderOrder(1, []uint32{11, 99})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	got, _ := s.LayerRenderOrder(1)
	if !slices.Equal(got, []uint32{12}) {
		t.Fatalf("order after failed set = %v, want [12]", got)
	}
	if _, ok := s.SurfaceLayer(11); ok {
		t.Fatal("surface 11 attached by a failed set")
	}

	if err := s.SetLayerRenderOrder(1, []uint32{11, 11}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("duplicate err = %v, want ErrInvalidArguments", err)
	}
	if err := s.SetLayerRenderOrder(5, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing parent err = %v, want ErrNotFound", err)
	}
}

func TestAddRemoveChild_Idempotent(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1, 2}, []uint32{11})

	for i := 0; i < 2; i++ {
		if err := s.AddSurfaceToLayer(1, 11); err != nil {
			t.Fatalf("AddSurfaceToLayer #%d: %v", i, err)
		}
	}
	got, _ := s.LayerRenderOrder(1)
	if !slices.Equal(got, []uint32{11}) {
		t.Fatalf("order = %v, want [11]", got)
	}

	if err := s.AddSurfaceToLayer(2, 11); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LayerRenderOrder(1)
	if len(got) != 0 {
		t.Fatalf("layer 1 order = %v, want empty", got)
	}

	if err := s.RemoveSurfaceFromLayer(1, 11); err != nil {
		t.Fatalf("RemoveSurfaceFromLayer absent: %v", err)
	}
	if owner, _ := s.SurfaceLayer(11); owner != 2 {
		t.Fatalf("removing from the wrong layer detached surface, owner = %d", owner)
	}
}

func TestScreenRenderOrder(t *testing.T) {
	s := sceneWithSurfaces(t, []uint32{1, 2, 3}, nil)
	s.CreateScreen(1000, ScreenProperties{})
	s.CreateScreen(1001, ScreenProperties{})

	if err := s.SetScreenRenderOrder(1000, []uint32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLayerToScreen(1001, 2); err != nil {
		t.Fatal(err)
	}
	a, _ := s.ScreenRenderOrder(1000)
	if !slices.Equal(a, []uint32{1}) {
		t.Fatalf("screen 1000 order = %v, want [1]", a)
	}
	if err := s.AddLayerToScreen(1000, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveLayerFromScreen(1000, 1); err != nil {
		t.Fatal(err)
	}
	a, _ = s.ScreenRenderOrder(1000)
	if !slices.Equal(a, []uint32{3}) {
		t.Fatalf("screen 1000 order = %v, want [3]", a)
	}
	if err := s.AddLayerToScreen(1000, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

package compositor

import (
	"context"
	"testing"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

func buildScene(t *testing.T) *layout.Scene {
	t.Helper()
	s := layout.NewScene(layout.Options{})
	if err := s.CreateScreen(1000, layout.ScreenProperties{ConnectorName: "HDMI-1", Width: 1920, Height: 1080}); err != nil {
		t.Fatal(err)
	}
	s.CreateLayer(1, 800, 600)
	s.CreateSurface(11, layout.DefaultSurfaceProperties())
	s.CreateSurface(12, layout.DefaultSurfaceProperties())
	s.SetLayerRenderOrder(1, []uint32{11, 12})
	s.SetScreenRenderOrder(1000, []uint32{1})
	s.SetLayerDestRect(1, layout.Rect{X: 100, Y: 50, Width: 800, Height: 600})
	s.SetLayerVisibility(1, true)
	s.SetLayerOpacity(1, 0.5)
	s.SetSurfaceDestRect(11, layout.Rect{X: 10, Y: 20, Width: 300, Height: 200})
	s.SetSurfaceVisibility(11, true)
	s.Commit()
	return s
}

func TestPlacements_ComposesOffsetsAndOpacity(t *testing.T) {
	s := buildScene(t)
	got := Placements(s.Snapshot(), func(layout.ScreenState) (int, int) { return 1920, 0 })
	if len(got) != 2 {
		t.Fatalf("placements = %d, want 2", len(got))
	}
	p := got[0]
	want := layout.Rect{X: 1920 + 110, Y: 70, Width: 300, Height: 200}
	if p.SurfaceID != 11 || p.Bounds != want {
		t.Fatalf("placement = %+v, want surface 11 at %v", p, want)
	}
	if p.Opacity != 0.5 || !p.Visible {
		t.Fatalf("placement opacity/visible = %v/%v, want 0.5/true", p.Opacity, p.Visible)
	}
	if got[1].Visible {
		t.Fatal("surface 12 visible without visibility set")
	}
}

type recordingSink struct {
	outputs  []Output
	surfaces []SurfaceInfo
	seats    []string
	removed  []uint32
}

func (r *recordingSink) OutputAdded(out Output) { r.outputs = append(r.outputs, out) }
func (r *recordingSink) OutputChanged(Output) {}
func (r *recordingSink) OutputRemoved(id uint32) { r.removed = append(r.removed, id) }
func (r *recordingSink) SurfaceAdded(info SurfaceInfo) { r.surfaces = append(r.surfaces, info) }
func (r *recordingSink) SurfaceConfigured(uint32, int, int) {}
func (r *recordingSink) SurfaceContent(uint32, bool) {}
func (r *recordingSink) SurfaceRemoved(id uint32) { r.removed = append(r.removed, id) }
func (r *recordingSink) SeatAdded(name string, _ input.Device) { r.seats = append(r.seats, name) }
func (r *recordingSink) SeatChanged(string, input.Device) {}
func (r *recordingSink) SeatRemoved(string) {}

func TestHeadless_StartReportsInitialState(t *testing.T) {
	h := NewHeadless(
		[]Output{{ID: 0, Name: "VIRTUAL-1", Bounds: layout.Rect{Width: 1024, Height: 768}}},
		[]Seat{{Name: "default", Caps: input.DeviceKeyboard}},
	)
	sink := &recordingSink{}
	h.AddSurface(SurfaceInfo{ID: 5})
	if len(sink.surfaces) != 0 {
		t.Fatal("event delivered before Start")
	}
	if err := h.Start(context.Background(), sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.outputs) != 1 || sink.outputs[0].Name != "VIRTUAL-1" {
		t.Fatalf("outputs = %+v", sink.outputs)
	}
	if len(sink.seats) != 1 {
		t.Fatalf("seats = %v, want [default]", sink.seats)
	}

	h.AddSurface(SurfaceInfo{ID: 7})
	h.RemoveOutput(0)
	if len(sink.surfaces) != 1 || sink.surfaces[0].ID != 7 {
		t.Fatalf("surfaces = %+v", sink.surfaces)
	}
	if len(sink.removed) != 1 || sink.removed[0] != 0 {
		t.Fatalf("removed = %v", sink.removed)
	}
}

func TestHeadless_ApplyCountsAndRecords(t *testing.T) {
	h := NewHeadless([]Output{{Name: "HDMI-1", Bounds: layout.Rect{X: 50, Y: 0, Width: 1920, Height: 1080}}}, nil)
	s := buildScene(t)
	if err := h.Apply(s.Snapshot()); err != nil {
		t.Fatal(err)
	}
	h.Apply(s.Snapshot())
	if h.Applies() != 2 {
		t.Fatalf("Applies() = %d, want 2", h.Applies())
	}
	_, placements := h.LastApplied()
	if placements[0].Bounds.X != 50+110 {
		t.Fatalf("placement X = %d, want %d", placements[0].Bounds.X, 160)
	}
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

type fakeClient struct {
	calls   []string
	syncs   int
	errs    chan control.ProtocolError
	layers  map[uint32]control.Layer
	screens map[uint32]control.Screen
	nextID  uint32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		errs:    make(chan control.ProtocolError, 8),
		layers:  make(map[uint32]control.Layer),
		screens: make(map[uint32]control.Screen),
		nextID:  3,
	}
}

func (f *fakeClient) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakeClient) Sync(context.Context) error { f.syncs++; return nil }
func (f *fakeClient) Errors() <-chan control.ProtocolError { return f.errs }
func (f *fakeClient) Scene(context.Context) (control.SceneState, error) {
	return control.SceneState{Screens: []control.Screen{{ID: 1001}}}, nil
}

func (f *fakeClient) Surface(_ context.Context, id uint32) (control.Surface, error) {
	if id != 40 {
		return control.Surface{}, control.ErrInvalidArguments
	}
	return control.Surface{ID: 40, Layer: layout.InvalidID}, nil
}

func (f *fakeClient) Layer(_ context.Context, id uint32) (control.Layer, error) {
	l, ok := f.layers[id]
	if !ok {
		return control.Layer{}, control.ErrInvalidArguments
	}
	return l, nil
}

func (f *fakeClient) Screen(_ context.Context, id uint32) (control.Screen, error) {
	s, ok := f.screens[id]
	if !ok {
		return control.Screen{}, control.ErrInvalidArguments
	}
	return s, nil
}

func (f *fakeClient) SurfaceSetVisibility(id uint32, v bool) error {
	return f.record("surface %d visible %v", id, v)
}
func (f *fakeClient) SurfaceSetOpacity(id uint32, o float64) error {
	return f.record("surface %d opacity %v", id, o)
}
func (f *fakeClient) SurfaceSetSourceRect(id uint32, r layout.Rect) error {
	return f.record("surface %d source %v", id, r)
}
func (f *fakeClient) SurfaceSetDestRect(id uint32, r layout.Rect) error {
	return f.record("surface %d dest %v", id, r)
}
func (f *fakeClient) LayerCreateWithDimension(_ context.Context, id uint32, w, h int) (uint32, error) {
	if id == layout.InvalidID {
		id = f.nextID
	}
	return id, f.record("layer %d create %dx%d", id, w, h)
}
func (f *fakeClient) LayerRemove(id uint32) error { return f.record("layer %d remove", id) }
func (f *fakeClient) LayerSetVisibility(id uint32, v bool) error {
	return f.record("layer %d visible %v", id, v)
}
func (f *fakeClient) LayerSetOpacity(id uint32, o float64) error {
	return f.record("layer %d opacity %v", id, o)
}
func (f *fakeClient) LayerSetSourceRect(id uint32, r layout.Rect) error {
	return f.record("layer %d source %v", id, r)
}
func (f *fakeClient) LayerSetDestRect(id uint32, r layout.Rect) error {
	return f.record("layer %d dest %v", id, r)
}
func (f *fakeClient) LayerSetRenderOrder(id uint32, ids []uint32) error {
	return f.record("layer %d order %v", id, ids)
}
func (f *fakeClient) ScreenSetRenderOrder(id uint32, ids []uint32) error {
	return f.record("screen %d order %v", id, ids)
}
func (f *fakeClient) ScreenAddLayer(screen, layer uint32) error {
	return f.record("screen %d add %d", screen, layer)
}
func (f *fakeClient) Commit() error { return f.record("commit") }

func newTestServer(f *fakeClient) *Server {
	return NewServer(Config{Client: f, Arrange: config.ArrangeConfig{Mode: config.ArrangeGrid}})
}

func ptr[T any](v T) *T { return &v }

func TestSetSurface_OnlyPresentFields(t *testing.T) {
	f := newFakeClient()
	s := newTestServer(f)
	_, out, err := s.handleSetSurface(context.Background(), nil, SetPropertiesInput{
		ID:      40,
		Opacity: ptr(0.5),
		Dest:    &layout.Rect{X: 1, Y: 2, Width: 3, Height: 4},
		Commit:  true,
	})
	if err != nil {
		t.Fatalf("handleSetSurface() error: %v", err)
	}
	want := []string{"surface 40 opacity 0.5", "surface 40 dest 1,2 3x4", "commit"}
	if strings.Join(f.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %q, want %q", f.calls, want)
	}
	if !out.Committed || f.syncs != 1 {
		t.Fatalf("out = %+v, syncs = %d", out, f.syncs)
	}
}

func TestSettle_CollectsProtocolErrors(t *testing.T) {
	f := newFakeClient()
	f.errs <- control.ProtocolError{Kind: layout.KindLayer, ID: 9, Code: ipc.ErrorNoSuchObject, Message: "unknown layer"}
	s := newTestServer(f)
	_, out, err := s.handleSetLayer(context.Background(), nil, SetPropertiesInput{ID: 9, Visible: ptr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if out.Committed || len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "layer 9") {
		t.Fatalf("out = %+v", out)
	}
}

func TestCreateLayer_OnScreen(t *testing.T) {
	f := newFakeClient()
	s := newTestServer(f)
	_, out, err := s.handleCreateLayer(context.Background(), nil, CreateLayerInput{
		Width: 640, Height: 480, Screen: ptr(uint32(1001)), Visible: true, Commit: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != 3 {
		t.Fatalf("ID = %d, want auto-assigned 3", out.ID)
	}
	want := []string{
		"layer 3 create 640x480",
		"layer 3 dest 0,0 640x480",
		"screen 1001 add 3",
		"layer 3 visible true",
		"commit",
	}
	if strings.Join(f.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %q, want %q", f.calls, want)
	}
}

func TestSetRenderOrder(t *testing.T) {
	f := newFakeClient()
	s := newTestServer(f)
	if _, _, err := s.handleSetRenderOrder(context.Background(), nil, SetRenderOrderInput{Kind: "layer", ID: 5, Children: []uint32{2, 1}}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.handleSetRenderOrder(context.Background(), nil, SetRenderOrderInput{Kind: "screen", ID: 1001, Children: []uint32{5}}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.handleSetRenderOrder(context.Background(), nil, SetRenderOrderInput{Kind: "surface", ID: 1}); err == nil {
		t.Fatal("expected error for a surface parent")
	}
	if _, _, err := s.handleSetRenderOrder(context.Background(), nil, SetRenderOrderInput{Kind: "window", ID: 1}); err == nil {
		t.Fatal("expected error for an unknown kind")
	}
	want := []string{"layer 5 order [2 1]", "screen 1001 order [5]"}
	if strings.Join(f.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %q, want %q", f.calls, want)
	}
}

func TestArrangeLayer_UsesConfigDefaults(t *testing.T) {
	f := newFakeClient()
	f.layers[5] = control.Layer{
		ID:              5,
		LayerProperties: layout.LayerProperties{DestRect: layout.Rect{Width: 200, Height: 100}},
		Surfaces:        []uint32{1, 2},
	}
	s := NewServer(Config{Client: f, Arrange: config.ArrangeConfig{Mode: config.ArrangeVertical}})
	_, out, err := s.handleArrangeLayer(context.Background(), nil, ArrangeLayerInput{ID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Rects) != 2 || out.Rects[1] != (layout.Rect{Y: 50, Width: 200, Height: 50}) {
		t.Fatalf("Rects = %v", out.Rects)
	}
}

func TestGetters_PropagateErrors(t *testing.T) {
	f := newFakeClient()
	s := newTestServer(f)
	if _, out, err := s.handleGetSurface(context.Background(), nil, GetObjectInput{ID: 40}); err != nil || out.Surface.ID != 40 {
		t.Fatalf("get_surface = %+v, %v", out, err)
	}
	if _, _, err := s.handleGetLayer(context.Background(), nil, GetObjectInput{ID: 1}); !errors.Is(err, control.ErrInvalidArguments) {
		t.Fatalf("get_layer error = %v", err)
	}
}

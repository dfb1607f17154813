package arrange

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/controller"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

type fakeLayers struct {
	layers  map[uint32]control.Layer
	screens map[uint32]control.Screen
	dest    map[uint32]layout.Rect
	commits int
}

func (f *fakeLayers) Layer(_ context.Context, id uint32) (control.Layer, error) {
	l, ok := f.layers[id]
	if !ok {
		return control.Layer{}, errors.New("no such layer")
	}
	return l, nil
}

func (f *fakeLayers) Screen(_ context.Context, id uint32) (control.Screen, error) {
	s, ok := f.screens[id]
	if !ok {
		return control.Screen{}, errors.New("no such screen")
	}
	return s, nil
}

func (f *fakeLayers) SurfaceSetDestRect(id uint32, r layout.Rect) error {
	f.dest[id] = r
	return nil
}

func (f *fakeLayers) Commit() error {
	f.commits++
	return nil
}

func TestArrangeLayer_FallsBackToScreenSize(t *testing.T) {
	f := &fakeLayers{
		layers: map[uint32]control.Layer{
			7: {ID: 7, Screen: 1001, Surfaces: []uint32{30, 31}},
		},
		screens: map[uint32]control.Screen{
			1001: {ID: 1001, ScreenProperties: layout.ScreenProperties{Width: 200, Height: 100}},
		},
		dest: make(map[uint32]layout.Rect),
	}
	rects, err := ArrangeLayer(context.Background(), f, 7, Options{Mode: config.ArrangeHorizontal})
	if err != nil {
		t.Fatalf("ArrangeLayer() error: %v", err)
	}
	if len(rects) != 2 || f.commits != 1 {
		t.Fatalf("rects = %v, commits = %d", rects, f.commits)
	}
	if f.dest[30] != (layout.Rect{Width: 100, Height: 100}) || f.dest[31] != (layout.Rect{X: 100, Width: 100, Height: 100}) {
		t.Fatalf("dest = %v", f.dest)
	}
}

func TestArrangeLayer_OffScreenWithoutSizeFails(t *testing.T) {
	f := &fakeLayers{
		layers: map[uint32]control.Layer{7: {ID: 7, Screen: layout.InvalidID, Surfaces: []uint32{30}}},
		dest:   make(map[uint32]layout.Rect),
	}
	if _, err := ArrangeLayer(context.Background(), f, 7, Options{}); err == nil {
		t.Fatal("expected error for a sizeless layer off screen")
	}
	if f.commits != 0 {
		t.Fatal("commit sent for a failed arrange")
	}
}

func TestPickScreen(t *testing.T) {
	screens := []control.Screen{
		{ID: 1, ScreenProperties: layout.ScreenProperties{ConnectorName: "A", Width: 800}},
		{ID: 2, ScreenProperties: layout.ScreenProperties{ConnectorName: "B", Width: 1920}},
	}
	if s, _ := PickScreen(screens, "A"); s.ID != 1 {
		t.Fatalf("PickScreen(A) = %d, want 1", s.ID)
	}
	if s, _ := PickScreen(screens, "missing"); s.ID != 2 {
		t.Fatalf("PickScreen(missing) = %d, want widest", s.ID)
	}
	if _, err := PickScreen(nil, ""); err == nil {
		t.Fatal("expected error with no screens")
	}
}

func TestPlaceNewSurfaces_Headless(t *testing.T) {
	h := compositor.NewHeadless(
		[]compositor.Output{{ID: 1, Name: "HEADLESS-1", Bounds: layout.Rect{Width: 1280, Height: 720}}},
		[]compositor.Seat{{Name: "default", Caps: input.DeviceKeyboard}},
	)
	ctrl, err := controller.New(controller.Config{
		Scene:               layout.NewScene(layout.Options{}),
		Input:               input.NewManager(input.Config{DefaultSeat: "default"}),
		Backend:             h,
		BackgroundSurfaceID: layout.InvalidID,
	})
	if err != nil {
		t.Fatal(err)
	}
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(runCtx)
	}()
	t.Cleanup(func() { stop(); <-done })
	<-ctrl.Started()

	srv, err := ipc.NewServer(ipc.ServerConfig{
		SocketPath: filepath.Join(t.TempDir(), "layerctl.sock"),
		Dispatcher: ctrl,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := control.New(control.Config{SocketPath: srv.SocketPath()})
	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	watch := control.New(control.Config{SocketPath: srv.SocketPath()})
	if err := watch.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer watch.Destroy()

	claims := NewClaims(filepath.Join(t.TempDir(), "claims"))
	type result struct {
		layer  uint32
		placed []Placement
		err    error
	}
	out := make(chan result, 1)
	go func() {
		var placed []Placement
		id, err := PlaceNewSurfaces(ctx, c, PlaceConfig{
			LayerID: 50,
			Count:   2,
			Claims:  claims,
			Rand:    rand.New(rand.NewPCG(7, 7)),
		}, func(p Placement) { placed = append(placed, p) })
		out <- result{id, placed, err}
	}()

	for {
		ids, err := watch.LayerIDsOnScreen(ctx, 1001)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) == 1 && ids[0] == 50 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.AddSurface(compositor.SurfaceInfo{ID: 11, Bounds: layout.Rect{Width: 300, Height: 200}})
	h.AddSurface(compositor.SurfaceInfo{ID: 12, Bounds: layout.Rect{Width: 400, Height: 300}})

	res := <-out
	if res.err != nil || res.layer != 50 {
		t.Fatalf("PlaceNewSurfaces() = %d, %v", res.layer, res.err)
	}
	if len(res.placed) != 2 || Overlaps(res.placed[0].Rect, res.placed[1].Rect) {
		t.Fatalf("placed = %+v", res.placed)
	}

	if err := c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	surfaces, err := watch.SurfaceIDsOnLayer(ctx, 50)
	if err != nil || len(surfaces) != 2 {
		t.Fatalf("SurfaceIDsOnLayer(50) = %v, %v", surfaces, err)
	}
	s, err := watch.Surface(ctx, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Visibility || s.SourceRect != (layout.Rect{Width: 400, Height: 300}) {
		t.Fatalf("surface 12 = %+v", s)
	}
	claimed, err := claims.Load()
	if err != nil || len(claimed) != 2 {
		t.Fatalf("claims = %v, %v", claimed, err)
	}
}

// loopback accepts every request and answers SYNC with DONE.
type loopback struct {
	events chan *ipc.Event
	closed chan struct{}
}

func newLoopback() *loopback {
	return &loopback{events: make(chan *ipc.Event, 64), closed: make(chan struct{})}
}

func (l *loopback) Send(req *ipc.Request) error {
	if req.Command == ipc.CommandSync {
		l.events <- &ipc.Event{Type: ipc.EventDone, Serial: req.Serial}
	}
	return nil
}

func (l *loopback) Recv() (*ipc.Event, error) {
	select {
	case ev := <-l.events:
		return ev, nil
	case <-l.closed:
		return nil, errors.New("closed")
	}
}

func (l *loopback) Close() error {
	close(l.closed)
	return nil
}

func TestPlaceRun_LatePlacementDoesNotBlock(t *testing.T) {
	c := control.New(control.Config{Transport: newLoopback()})
	if err := c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	p := &placeRun{
		c:        c,
		ctx:      context.Background(),
		layerID:  50,
		claims:   NewClaims(filepath.Join(t.TempDir(), "claims")),
		placer:   &Placer{Area: layout.Rect{Width: 1280, Height: 720}, Rand: rand.New(rand.NewPCG(1, 1))},
		log:      slog.New(slog.DiscardHandler),
		seen:     make(map[uint32]bool),
		results:  make(chan Placement),
		finished: make(chan struct{}),
	}

	// Nobody reads results: the run has already returned.
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		p.place(11, 100, 100)
	}()
	time.Sleep(20 * time.Millisecond)
	close(p.finished)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("place() blocked after the run finished")
	}

	p.place(12, 100, 100)
	p.mu.Lock()
	seen := p.seen[12]
	p.mu.Unlock()
	if seen {
		t.Fatal("place() handled a surface after the run finished")
	}
}

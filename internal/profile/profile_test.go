package profile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/controller"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

func startScene(t *testing.T) (*compositor.Headless, *control.Context) {
	t.Helper()
	h := compositor.NewHeadless(
		[]compositor.Output{{ID: 1, Name: "HEADLESS-1", Bounds: layout.Rect{Width: 1920, Height: 1080}}},
		nil,
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
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	t.Cleanup(func() { cancel(); <-done })
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

	c := control.New(control.Config{SocketPath: srv.SocketPath()})
	initCtx, initCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer initCancel()
	if err := c.Init(initCtx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Destroy() })
	return h, c
}

func TestCaptureAndApply(t *testing.T) {
	h, c := startScene(t)
	ctx := context.Background()

	h.AddSurface(compositor.SurfaceInfo{ID: 11, Bounds: layout.Rect{Width: 300, Height: 200}, Visible: true})
	if _, err := c.LayerCreateWithDimension(ctx, 5, 1920, 1080); err != nil {
		t.Fatal(err)
	}
	dest := layout.Rect{X: 40, Y: 30, Width: 300, Height: 200}
	for _, err := range []error{
		c.LayerSetVisibility(5, true),
		c.LayerSetDestRect(5, layout.Rect{Width: 1920, Height: 1080}),
		c.LayerAddSurface(5, 11),
		c.SurfaceSetDestRect(11, dest),
		c.ScreenSetRenderOrder(1001, []uint32{5}),
		c.Commit(),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	p, err := Capture(ctx, c, "desk")
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if len(p.Layers) != 1 || len(p.Layers[0].Surfaces) != 1 || p.Layers[0].Surfaces[0].Dest != dest {
		t.Fatalf("Capture() = %+v", p)
	}
	if len(p.Screens) != 1 || p.Screens[0].Connector != "HEADLESS-1" || len(p.Screens[0].Layers) != 1 {
		t.Fatalf("Screens = %+v", p.Screens)
	}

	// Tear the arrangement down, add a stray layer, then restore.
	if err := c.LayerRemove(5); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LayerCreateWithDimension(ctx, 9, 100, 100); err != nil {
		t.Fatal(err)
	}
	if err := c.SurfaceSetDestRect(11, layout.Rect{Width: 1, Height: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Commit(); err != nil {
		t.Fatal(err)
	}

	p.Layers[0].Surfaces = append(p.Layers[0].Surfaces, Surface{ID: 99})
	rep, err := Apply(ctx, c, p, ApplyOptions{Replace: true})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(rep.CreatedLayers) != 1 || rep.CreatedLayers[0] != 5 {
		t.Fatalf("CreatedLayers = %v", rep.CreatedLayers)
	}
	if len(rep.RemovedLayers) != 1 || rep.RemovedLayers[0] != 9 {
		t.Fatalf("RemovedLayers = %v", rep.RemovedLayers)
	}
	if len(rep.MissingSurfaces) != 1 || rep.MissingSurfaces[0] != 99 {
		t.Fatalf("MissingSurfaces = %v", rep.MissingSurfaces)
	}

	layers, err := c.LayerIDsOnScreen(ctx, 1001)
	if err != nil || len(layers) != 1 || layers[0] != 5 {
		t.Fatalf("LayerIDsOnScreen = %v, %v", layers, err)
	}
	s, err := c.Surface(ctx, 11)
	if err != nil || s.DestRect != dest || s.Layer != 5 {
		t.Fatalf("Surface(11) = %+v, %v", s, err)
	}
	ids, err := c.LayerIDs(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("LayerIDs = %v, %v", ids, err)
	}
}

func TestApply_MissingScreenIsReported(t *testing.T) {
	_, c := startScene(t)
	rep, err := Apply(context.Background(), c, &Profile{
		Name:    "x",
		Screens: []Screen{{Connector: "GONE", ID: 77}},
	}, ApplyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.MissingScreens) != 1 || rep.MissingScreens[0] != "GONE" {
		t.Fatalf("MissingScreens = %v", rep.MissingScreens)
	}
}

package controller

import (
	"context"
	"testing"
	"time"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

type fakePeer struct {
	id     uint64
	pid    int
	events chan *ipc.Event
	serial uint32
}

func newPeer(id uint64, pid int) *fakePeer {
	return &fakePeer{id: id, pid: pid, events: make(chan *ipc.Event, 256)}
}

func (p *fakePeer) ID() uint64 { return p.id }
func (p *fakePeer) PID() int   { return p.pid }

func (p *fakePeer) Send(ev *ipc.Event) bool {
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

type harness struct {
	t    *testing.T
	c    *Controller
	h    *compositor.Headless
	peer *fakePeer
}

func newHarness(t *testing.T, cfg Config, outputs []compositor.Output, seats []compositor.Seat) *harness {
	t.Helper()
	h := compositor.NewHeadless(outputs, seats)
	cfg.Scene = layout.NewScene(layout.Options{})
	cfg.Backend = h
	if cfg.Input == nil {
		cfg.Input = input.NewManager(input.Config{DefaultSeat: "default"})
	}
	if cfg.BackgroundSurfaceID == 0 {
		cfg.BackgroundSurfaceID = layout.InvalidID
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(ctx); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-c.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not start")
	}

	hs := &harness{t: t, c: c, h: h, peer: newPeer(1, 4242)}
	c.Attach(hs.peer)
	return hs
}

// sync round-trips a SYNC on p and returns every event received before DONE.
func (hs *harness) sync(p *fakePeer) []*ipc.Event {
	hs.t.Helper()
	p.serial++
	hs.c.Dispatch(p, &ipc.Request{Command: ipc.CommandSync, Serial: p.serial})
	var out []*ipc.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.events:
			if ev.Type == ipc.EventDone && ev.Serial == p.serial {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			hs.t.Fatalf("timed out waiting for DONE %d", p.serial)
		}
	}
}

func (hs *harness) request(cmd ipc.CommandType, payload any) {
	hs.t.Helper()
	req, err := ipc.NewRequest(cmd, payload)
	if err != nil {
		hs.t.Fatal(err)
	}
	hs.c.Dispatch(hs.peer, req)
}

func ofType(events []*ipc.Event, typ ipc.EventType) []*ipc.Event {
	var out []*ipc.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func decode[T any](t *testing.T, ev *ipc.Event) T {
	t.Helper()
	var v T
	if err := ev.Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", ev.Type, err)
	}
	return v
}

var output1 = compositor.Output{ID: 1, Name: "HEADLESS-1", Bounds: layout.Rect{Width: 1920, Height: 1080}}

func TestScreenIDMapping(t *testing.T) {
	hs := newHarness(t, Config{
		ScreenFor: func(id uint32, name string) uint32 {
			if name == "DP-9" {
				return 77
			}
			return id + DefaultScreenIDOffset
		},
	}, []compositor.Output{output1}, nil)

	created := ofType(hs.sync(hs.peer), ipc.EventScreenCreated)
	if len(created) != 1 {
		t.Fatalf("SCREEN_CREATED events = %d, want 1", len(created))
	}
	scr := decode[ipc.ScreenPayload](t, created[0])
	if scr.ID != 1001 || scr.Properties.Width != 1920 || scr.Properties.ConnectorName != "HEADLESS-1" {
		t.Fatalf("screen = %+v, want id 1001 1920 wide", scr)
	}

	hs.h.AddOutput(compositor.Output{ID: 2, Name: "DP-9", Bounds: layout.Rect{Width: 800, Height: 600}})
	created = ofType(hs.sync(hs.peer), ipc.EventScreenCreated)
	if len(created) != 1 || decode[ipc.ScreenPayload](t, created[0]).ID != 77 {
		t.Fatalf("named output did not map to screen 77: %v", created)
	}

	hs.h.RemoveOutput(2)
	destroyed := ofType(hs.sync(hs.peer), ipc.EventScreenDestroyed)
	if len(destroyed) != 1 || decode[ipc.ObjectPayload](t, destroyed[0]).ID != 77 {
		t.Fatalf("SCREEN_DESTROYED = %v, want screen 77", destroyed)
	}
}

func TestBackgroundSurfaceIsNotTracked(t *testing.T) {
	hs := newHarness(t, Config{BackgroundSurfaceID: 5}, []compositor.Output{output1}, nil)
	hs.sync(hs.peer)

	hs.h.AddSurface(compositor.SurfaceInfo{ID: 5, Bounds: layout.Rect{Width: 1920, Height: 1080}, Visible: true})
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 6, PID: 99, Bounds: layout.Rect{Width: 300, Height: 200}, Visible: true})
	hs.h.ConfigureSurface(5, 10, 10)

	created := ofType(hs.sync(hs.peer), ipc.EventSurfaceCreated)
	if len(created) != 1 {
		t.Fatalf("SURFACE_CREATED events = %d, want 1", len(created))
	}
	surf := decode[ipc.SurfacePayload](t, created[0])
	if surf.ID != 6 || surf.Properties.CreatorPID != 99 || surf.Properties.OrigSourceWidth != 300 {
		t.Fatalf("surface = %+v", surf)
	}
	if hs.c.scene.Has(layout.KindSurface, 5) {
		t.Fatal("background surface is tracked")
	}
}

func TestLayerScenario_OneNotificationPerCommit(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	hs.sync(hs.peer)

	hs.request(ipc.CommandLayerCreate, ipc.CreatePayload{ID: 600, Width: 640, Height: 480})
	hs.request(ipc.CommandLayerSetDestRect, ipc.RectPayload{ID: 600, Rect: layout.Rect{Width: 640, Height: 480}})
	hs.request(ipc.CommandLayerSetVisibility, ipc.VisibilityPayload{ID: 600, Visible: true})
	hs.request(ipc.CommandScreenAddLayer, ipc.MembershipPayload{Parent: 1001, Child: 600})

	events := hs.sync(hs.peer)
	if len(ofType(events, ipc.EventLayerCreated)) != 1 {
		t.Fatalf("LAYER_CREATED missing: %v", events)
	}
	if n := len(ofType(events, ipc.EventLayerProperties)); n != 0 {
		t.Fatalf("LAYER_PROPERTIES before commit = %d, want 0", n)
	}

	applies := hs.h.Applies()
	hs.request(ipc.CommandCommit, nil)
	events = hs.sync(hs.peer)
	props := ofType(events, ipc.EventLayerProperties)
	if len(props) != 1 {
		t.Fatalf("LAYER_PROPERTIES = %d, want 1", len(props))
	}
	lp := decode[ipc.LayerPayload](t, props[0])
	if lp.Mask != layout.MaskDestRect|layout.MaskVisibility {
		t.Fatalf("mask = %v, want dest_rect|visibility", lp.Mask)
	}
	if !lp.Properties.Visibility {
		t.Fatal("layer not visible in snapshot")
	}
	orders := ofType(events, ipc.EventRenderOrder)
	if len(orders) != 1 || decode[ipc.RenderOrderPayload](t, orders[0]).Parent != 1001 {
		t.Fatalf("RENDER_ORDER = %v, want screen 1001", orders)
	}
	if hs.h.Applies() != applies+1 {
		t.Fatalf("Applies() = %d, want %d", hs.h.Applies(), applies+1)
	}

	hs.request(ipc.CommandCommit, nil)
	if n := len(ofType(hs.sync(hs.peer), ipc.EventLayerProperties)); n != 0 {
		t.Fatalf("empty commit produced %d notifications", n)
	}
}

func TestProtocolErrors(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	hs.sync(hs.peer)

	hs.request(ipc.CommandLayerCreate, ipc.CreatePayload{ID: 10, Width: 1, Height: 1})
	hs.request(ipc.CommandLayerCreate, ipc.CreatePayload{ID: 10, Width: 1, Height: 1})
	hs.request(ipc.CommandSurfaceSetOpacity, ipc.OpacityPayload{ID: 404, Opacity: 0.5})
	hs.request(ipc.CommandLayerSetSourceRect, ipc.RectPayload{ID: 10, Rect: layout.Rect{X: -1}})
	hs.request(ipc.CommandType("SURFACE_EXPLODE"), nil)

	errs := ofType(hs.sync(hs.peer), ipc.EventError)
	want := []struct {
		code ipc.ErrorCode
		id   uint32
	}{
		{ipc.ErrorDuplicateID, 10},
		{ipc.ErrorNoSuchObject, 404},
		{ipc.ErrorBadParam, 10},
		{ipc.ErrorNotSupported, layout.InvalidID},
	}
	if len(errs) != len(want) {
		t.Fatalf("ERROR events = %d, want %d", len(errs), len(want))
	}
	for i, w := range want {
		got := decode[ipc.ErrorPayload](t, errs[i])
		if got.Code != w.code || got.ObjectID != w.id {
			t.Fatalf("error %d = %+v, want code %s id %d", i, got, w.code, w.id)
		}
	}
}

func TestErrorsGoOnlyToRequester(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	other := newPeer(2, 1)
	hs.c.Attach(other)
	hs.sync(hs.peer)
	hs.sync(other)

	hs.request(ipc.CommandLayerRemove, ipc.ObjectPayload{ID: 9})
	if len(ofType(hs.sync(hs.peer), ipc.EventError)) != 1 {
		t.Fatal("requester did not get ERROR")
	}
	if len(ofType(hs.sync(other), ipc.EventError)) != 0 {
		t.Fatal("ERROR leaked to another session")
	}
}

func TestBindReplaysExistingState(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, []compositor.Seat{{Name: "default", Caps: input.DeviceKeyboard}})
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 30, Bounds: layout.Rect{Width: 10, Height: 10}})
	hs.request(ipc.CommandLayerCreate, ipc.CreatePayload{ID: 20, Width: 100, Height: 100})
	hs.request(ipc.CommandLayerAddSurface, ipc.MembershipPayload{Parent: 20, Child: 30})
	hs.request(ipc.CommandScreenAddLayer, ipc.MembershipPayload{Parent: 1001, Child: 20})
	hs.request(ipc.CommandCommit, nil)
	hs.sync(hs.peer)

	late := newPeer(3, 0)
	hs.c.Attach(late)
	events := hs.sync(late)

	checks := map[ipc.EventType]int{
		ipc.EventScreenCreated:   1,
		ipc.EventLayerCreated:    1,
		ipc.EventSurfaceCreated:  1,
		ipc.EventRenderOrder:     2,
		ipc.EventSeatCreated:     1,
		ipc.EventInputAcceptance: 1,
	}
	for typ, want := range checks {
		if got := len(ofType(events, typ)); got != want {
			t.Fatalf("replayed %s = %d, want %d", typ, got, want)
		}
	}
	if events[0].Type != ipc.EventScreenCreated {
		t.Fatalf("first replayed event = %s, want SCREEN_CREATED", events[0].Type)
	}
}

func TestSeatLifecycle(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 1, Bounds: layout.Rect{Width: 1, Height: 1}})
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 2, Bounds: layout.Rect{Width: 1, Height: 1}})
	hs.sync(hs.peer)

	hs.h.AddSeat("default", input.DeviceKeyboard|input.DevicePointer)
	events := hs.sync(hs.peer)
	if len(ofType(events, ipc.EventSeatCreated)) != 1 || len(ofType(events, ipc.EventInputAcceptance)) != 2 {
		t.Fatalf("default seat events = %v, want 1 created + 2 acceptances", events)
	}

	hs.h.AddSeat("tablet", input.DeviceTouch)
	events = hs.sync(hs.peer)
	if len(events) != 1 || events[0].Type != ipc.EventSeatCreated {
		t.Fatalf("other seat events = %v, want only SEAT_CREATED", events)
	}

	hs.h.UpdateSeat("tablet", input.DeviceTouch|input.DevicePointer)
	hs.h.RemoveSeat("default")
	events = hs.sync(hs.peer)
	if len(ofType(events, ipc.EventSeatCapabilities)) != 1 || len(ofType(events, ipc.EventSeatDestroyed)) != 1 {
		t.Fatalf("update/remove events = %v", events)
	}
	if seats, _ := hs.c.Input().Accepted(1); len(seats) != 0 {
		t.Fatalf("Accepted(1) = %v after default seat removal", seats)
	}
}

func TestKeyboardFocusIsExclusive(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, []compositor.Seat{{Name: "default", Caps: input.DeviceKeyboard}})
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 1, Bounds: layout.Rect{Width: 1, Height: 1}})
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 2, Bounds: layout.Rect{Width: 1, Height: 1}})
	hs.sync(hs.peer)

	hs.request(ipc.CommandInputSetFocus, ipc.FocusPayload{SurfaceID: 1, Devices: input.DeviceKeyboard, Enabled: true})
	hs.request(ipc.CommandInputSetFocus, ipc.FocusPayload{SurfaceID: 2, Devices: input.DeviceKeyboard, Enabled: true})
	focus := ofType(hs.sync(hs.peer), ipc.EventInputFocus)
	if len(focus) != 3 {
		t.Fatalf("INPUT_FOCUS events = %d, want 3", len(focus))
	}
	lost := decode[ipc.FocusPayload](t, focus[1])
	if lost.SurfaceID != 1 || lost.Enabled {
		t.Fatalf("second focus event = %+v, want surface 1 losing focus", lost)
	}
	if hs.h.Focused() != 2 {
		t.Fatalf("backend focused = %d, want 2", hs.h.Focused())
	}
}

func TestClientSurfaceGetsCreatorPID(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	hs.sync(hs.peer)

	hs.request(ipc.CommandSurfaceCreate, ipc.CreatePayload{ID: layout.InvalidID, Width: 64, Height: 32})
	created := ofType(hs.sync(hs.peer), ipc.EventSurfaceCreated)
	if len(created) != 1 {
		t.Fatalf("SURFACE_CREATED = %d, want 1", len(created))
	}
	surf := decode[ipc.SurfacePayload](t, created[0])
	if surf.ID != 0 || surf.Properties.CreatorPID != 4242 || surf.Properties.OrigSourceHeight != 32 {
		t.Fatalf("surface = %+v", surf)
	}
}

func TestTickCommitsCompositorChanges(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, nil)
	hs.h.AddSurface(compositor.SurfaceInfo{ID: 7, Bounds: layout.Rect{Width: 10, Height: 10}})
	hs.sync(hs.peer)

	hs.h.ConfigureSurface(7, 20, 30)
	hs.c.Tick()
	// The commit is queued by the tick itself, so it may land after the
	// first DONE.
	events := append(hs.sync(hs.peer), hs.sync(hs.peer)...)

	props := ofType(events, ipc.EventSurfaceProperties)
	if len(props) != 1 {
		t.Fatalf("SURFACE_PROPERTIES = %d, want 1", len(props))
	}
	sp := decode[ipc.SurfacePayload](t, props[0])
	if sp.Mask != layout.MaskConfigured || sp.Properties.OrigSourceWidth != 20 {
		t.Fatalf("surface payload = %+v", sp)
	}
}

func TestStatus(t *testing.T) {
	hs := newHarness(t, Config{}, []compositor.Output{output1}, []compositor.Seat{{Name: "default"}})
	hs.sync(hs.peer)
	st := hs.c.Status()
	if st.Backend != "headless" || st.Screens != 1 || st.Seats != 1 || st.Sessions != 1 {
		t.Fatalf("Status() = %+v", st)
	}
}

func TestRequestsAfterStopAreDropped(t *testing.T) {
	c, err := New(Config{
		Scene:               layout.NewScene(layout.Options{}),
		Backend:             compositor.NewHeadless(nil, nil),
		BackgroundSurfaceID: layout.InvalidID,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	<-c.Started()

	ran := make(chan struct{})
	if err := c.Do(context.Background(), func() { close(ran) }); err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	<-ran
	cancel()
	<-done

	c.Tick()
	if err := c.Do(context.Background(), func() { t.Error("ran after stop") }); err == nil {
		t.Fatal("Do() after stop = nil, want error")
	}
}

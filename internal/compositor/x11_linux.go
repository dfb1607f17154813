//go:build linux

package compositor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
	"github.com/1broseidon/layerctl/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// X11Config configures the X11 backend.
type X11Config struct {
	Conn *x11.Connection
	// SeatName is the name of the single seat backed by the core X devices.
	SeatName     string
	EnableCursor bool
	Logger       *slog.Logger
}

// X11 drives top-level client windows of an EWMH window manager. Each RandR
// output is an output and each normal client window is a surface whose id is
// its window id.
type X11 struct {
	cfg  X11Config
	conn *x11.Connection
	log  *slog.Logger

	mu      sync.Mutex
	sink    Sink
	outputs map[uint32]x11.Monitor
	windows map[uint32]x11.Window
	applied map[uint32]Placement
	stack   []uint32
}

var _ Backend = (*X11)(nil)

// NewX11 creates an X11 backend on an existing connection.
func NewX11(cfg X11Config) (*X11, error) {
	if cfg.Conn == nil {
		return nil, errors.New("x11 backend: nil connection")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &X11{
		cfg:     cfg,
		conn:    cfg.Conn,
		log:     log,
		outputs: make(map[uint32]x11.Monitor),
		windows: make(map[uint32]x11.Window),
		applied: make(map[uint32]Placement),
	}, nil
}

func (b *X11) Name() string { return "x11" }

func (b *X11) Start(_ context.Context, sink Sink) error {
	if sink == nil {
		return errors.New("x11 backend: nil sink")
	}
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()

	if err := b.Poll(); err != nil {
		return err
	}
	caps := input.DeviceKeyboard
	if b.cfg.EnableCursor {
		caps |= input.DevicePointer
	}
	sink.SeatAdded(b.cfg.SeatName, caps)
	return nil
}

// Poll rescans outputs and client windows and reports the differences.
func (b *X11) Poll() error {
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return fmt.Errorf("x11 backend: %w", err)
	}
	windows, err := b.conn.ClientWindows()
	if err != nil {
		return fmt.Errorf("x11 backend: %w", err)
	}

	b.mu.Lock()
	sink := b.sink
	var events []func()

	seenOutputs := make(map[uint32]bool, len(monitors))
	for _, m := range monitors {
		seenOutputs[m.ID] = true
		out := outputFromMonitor(m)
		prev, ok := b.outputs[m.ID]
		b.outputs[m.ID] = m
		switch {
		case !ok:
			events = append(events, func() { sink.OutputAdded(out) })
		case prev != m:
			events = append(events, func() { sink.OutputChanged(out) })
		}
	}
	for id := range b.outputs {
		if !seenOutputs[id] {
			delete(b.outputs, id)
			events = append(events, func() { sink.OutputRemoved(id) })
		}
	}

	seenWindows := make(map[uint32]bool, len(windows))
	for _, w := range windows {
		seenWindows[w.ID] = true
		prev, ok := b.windows[w.ID]
		b.windows[w.ID] = w
		if !ok {
			info := SurfaceInfo{
				ID:      w.ID,
				PID:     w.PID,
				Title:   w.Title,
				Bounds:  layout.Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height},
				Visible: !w.Hidden,
			}
			events = append(events, func() { sink.SurfaceAdded(info) })
			continue
		}
		if prev.Width != w.Width || prev.Height != w.Height {
			events = append(events, func() { sink.SurfaceConfigured(w.ID, w.Width, w.Height) })
		}
		if prev.Hidden != w.Hidden {
			events = append(events, func() { sink.SurfaceContent(w.ID, !w.Hidden) })
		}
	}
	for id := range b.windows {
		if !seenWindows[id] {
			delete(b.windows, id)
			delete(b.applied, id)
			events = append(events, func() { sink.SurfaceRemoved(id) })
		}
	}
	b.mu.Unlock()

	if sink == nil {
		return nil
	}
	for _, ev := range events {
		ev()
	}
	return nil
}

// Apply moves, shows, hides and restacks managed windows. Only properties
// that differ from the previous Apply are sent to the X server.
func (b *X11) Apply(snap layout.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	placements := Placements(snap, b.originLocked)
	var errs []error
	var stack []uint32
	for _, p := range placements {
		if _, ok := b.windows[p.SurfaceID]; !ok {
			continue
		}
		win := xproto.Window(p.SurfaceID)
		prev, had := b.applied[p.SurfaceID]

		if p.Bounds.Width > 0 && p.Bounds.Height > 0 && (!had || prev.Bounds != p.Bounds) {
			if err := b.conn.MoveResizeWindow(win, p.Bounds.X, p.Bounds.Y, p.Bounds.Width, p.Bounds.Height); err != nil {
				errs = append(errs, fmt.Errorf("move window %d: %w", p.SurfaceID, err))
			}
		}
		if !had || prev.Visible != p.Visible {
			var err error
			if p.Visible {
				err = b.conn.MapWindow(win)
			} else {
				err = b.conn.MinimizeWindow(win)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("visibility of window %d: %w", p.SurfaceID, err))
			}
		}
		if !had || prev.Opacity != p.Opacity {
			if err := b.conn.SetWindowOpacity(win, p.Opacity); err != nil {
				errs = append(errs, fmt.Errorf("opacity of window %d: %w", p.SurfaceID, err))
			}
		}
		b.applied[p.SurfaceID] = p
		if p.Visible {
			stack = append(stack, p.SurfaceID)
		}
	}

	if !slices.Equal(stack, b.stack) {
		var below xproto.Window
		for _, id := range stack {
			if err := b.conn.StackAbove(xproto.Window(id), below); err != nil {
				errs = append(errs, fmt.Errorf("restack window %d: %w", id, err))
			}
			below = xproto.Window(id)
		}
		b.stack = stack
	}

	if len(errs) > 0 {
		b.log.Debug("apply finished with errors", "count", len(errs))
	}
	return errors.Join(errs...)
}

func (b *X11) originLocked(scr layout.ScreenState) (int, int) {
	for _, m := range b.outputs {
		if m.Name == scr.Properties.ConnectorName {
			return m.X, m.Y
		}
	}
	return 0, 0
}

func (b *X11) FocusSurface(id uint32) error {
	return b.conn.FocusWindow(id)
}

// Close forgets applied state. The connection belongs to the caller.
func (b *X11) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = nil
	b.applied = make(map[uint32]Placement)
	return nil
}

func outputFromMonitor(m x11.Monitor) Output {
	return Output{
		ID:     m.ID,
		Name:   m.Name,
		Bounds: layout.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
	}
}

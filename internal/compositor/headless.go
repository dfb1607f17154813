package compositor

import (
	"context"
	"errors"
	"sync"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Seat is a seat the headless backend reports at start.
type Seat struct {
	Name string
	Caps input.Device
}

// Headless is an in-memory backend. Outputs, surfaces and seats are injected
// by the caller, and applied scenes are recorded instead of drawn.
type Headless struct {
	mu         sync.Mutex
	outputs    []Output
	seats      []Seat
	sink       Sink
	applies    int
	last       layout.Snapshot
	placements []Placement
	focused    uint32
}

var _ Backend = (*Headless)(nil)

// NewHeadless creates a headless backend reporting the given outputs and
// seats when started.
func NewHeadless(outputs []Output, seats []Seat) *Headless {
	return &Headless{outputs: outputs, seats: seats, focused: layout.InvalidID}
}

func (h *Headless) Name() string { return "headless" }

func (h *Headless) Start(_ context.Context, sink Sink) error {
	if sink == nil {
		return errors.New("headless: nil sink")
	}
	h.mu.Lock()
	h.sink = sink
	outputs := append([]Output(nil), h.outputs...)
	seats := append([]Seat(nil), h.seats...)
	h.mu.Unlock()

	for _, out := range outputs {
		sink.OutputAdded(out)
	}
	for _, seat := range seats {
		sink.SeatAdded(seat.Name, seat.Caps)
	}
	return nil
}

func (h *Headless) Apply(snap layout.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applies++
	h.last = snap
	h.placements = Placements(snap, h.originLocked)
	return nil
}

func (h *Headless) originLocked(scr layout.ScreenState) (int, int) {
	for _, out := range h.outputs {
		if out.Name == scr.Properties.ConnectorName {
			return out.Bounds.X, out.Bounds.Y
		}
	}
	return 0, 0
}

func (h *Headless) FocusSurface(id uint32) error {
	h.mu.Lock()
	h.focused = id
	h.mu.Unlock()
	return nil
}

func (h *Headless) Close() error { return nil }

// Applies returns how many scenes were applied.
func (h *Headless) Applies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applies
}

// LastApplied returns the most recently applied scene and its placements.
func (h *Headless) LastApplied() (layout.Snapshot, []Placement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, append([]Placement(nil), h.placements...)
}

// Focused returns the surface most recently given keyboard focus.
func (h *Headless) Focused() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

func (h *Headless) withSink(fn func(Sink)) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()
	if sink != nil {
		fn(sink)
	}
}

// AddOutput connects an output.
func (h *Headless) AddOutput(out Output) {
	h.mu.Lock()
	h.outputs = append(h.outputs, out)
	h.mu.Unlock()
	h.withSink(func(s Sink) { s.OutputAdded(out) })
}

// RemoveOutput disconnects an output.
func (h *Headless) RemoveOutput(id uint32) {
	h.mu.Lock()
	for i, out := range h.outputs {
		if out.ID == id {
			h.outputs = append(h.outputs[:i], h.outputs[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	h.withSink(func(s Sink) { s.OutputRemoved(id) })
}

// AddSurface reports a new client surface.
func (h *Headless) AddSurface(info SurfaceInfo) {
	h.withSink(func(s Sink) { s.SurfaceAdded(info) })
}

// ConfigureSurface reports a new client buffer size.
func (h *Headless) ConfigureSurface(id uint32, width, height int) {
	h.withSink(func(s Sink) { s.SurfaceConfigured(id, width, height) })
}

// SetContent reports whether a surface has content.
func (h *Headless) SetContent(id uint32, available bool) {
	h.withSink(func(s Sink) { s.SurfaceContent(id, available) })
}

// RemoveSurface reports a client surface going away.
func (h *Headless) RemoveSurface(id uint32) {
	h.withSink(func(s Sink) { s.SurfaceRemoved(id) })
}

// AddSeat reports a new seat.
func (h *Headless) AddSeat(name string, caps input.Device) {
	h.withSink(func(s Sink) { s.SeatAdded(name, caps) })
}

// UpdateSeat reports a capability change.
func (h *Headless) UpdateSeat(name string, caps input.Device) {
	h.withSink(func(s Sink) { s.SeatChanged(name, caps) })
}

// RemoveSeat reports a seat going away.
func (h *Headless) RemoveSeat(name string) {
	h.withSink(func(s Sink) { s.SeatRemoved(name) })
}

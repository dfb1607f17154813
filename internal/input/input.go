// Package input tracks seats, which seats each surface accepts input from,
// and per-surface input focus.
package input

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/1broseidon/layerctl/internal/layout"
)

// Device is a bit set of input device classes.
type Device uint32

const (
	DeviceKeyboard Device = 1 << 0
	DevicePointer  Device = 1 << 1
	DeviceTouch    Device = 1 << 2

	DeviceAll = DeviceKeyboard | DevicePointer | DeviceTouch
)

func (d Device) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	if d&DeviceKeyboard != 0 {
		parts = append(parts, "keyboard")
	}
	if d&DevicePointer != 0 {
		parts = append(parts, "pointer")
	}
	if d&DeviceTouch != 0 {
		parts = append(parts, "touch")
	}
	if rest := d &^ DeviceAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseDevice parses a list like "keyboard,pointer" or "all".
func ParseDevice(s string) (Device, error) {
	var d Device
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "keyboard":
			d |= DeviceKeyboard
		case "pointer":
			d |= DevicePointer
		case "touch":
			d |= DeviceTouch
		case "all":
			d |= DeviceAll
		default:
			return 0, fmt.Errorf("unknown input device %q", part)
		}
	}
	return d, nil
}

var ErrUnknownSeat = errors.New("unknown seat")

// Seat is a named input device group.
type Seat struct {
	Name         string `json:"name"`
	Capabilities Device `json:"capabilities"`
}

// EventKind enumerates input state changes.
type EventKind int

const (
	SeatCreated EventKind = iota
	SeatCapabilities
	SeatDestroyed
	AcceptanceChanged
	FocusChanged
)

// Event describes one input state change. Which fields are set depends on
// Kind.
type Event struct {
	Kind      EventKind
	Seat      string
	Caps      Device
	SurfaceID uint32
	Accepted  bool
	Device    Device
	Enabled   bool
}

// Config configures a Manager.
type Config struct {
	// DefaultSeat is accepted by every surface automatically.
	DefaultSeat string
	Logger      *slog.Logger
}

// Manager holds seat and focus state. Mutating methods return the events the
// change produced, in order.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	log      *slog.Logger
	seats    map[string]Device
	accepted map[uint32]map[string]struct{}
	focus    map[uint32]Device
	keyboard uint32
	surfaces []uint32
}

func NewManager(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		cfg:      cfg,
		log:      log,
		seats:    make(map[string]Device),
		accepted: make(map[uint32]map[string]struct{}),
		focus:    make(map[uint32]Device),
		keyboard: layout.InvalidID,
	}
}

func (m *Manager) isDefault(name string) bool {
	return m.cfg.DefaultSeat != "" && name == m.cfg.DefaultSeat
}

// AddSurface starts tracking a surface. If the default seat exists the
// surface accepts it immediately.
func (m *Manager) AddSurface(id uint32) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accepted[id]; ok {
		return nil
	}
	m.accepted[id] = make(map[string]struct{})
	m.surfaces = append(m.surfaces, id)
	if _, ok := m.seats[m.cfg.DefaultSeat]; ok && m.cfg.DefaultSeat != "" {
		m.accepted[id][m.cfg.DefaultSeat] = struct{}{}
		return []Event{{Kind: AcceptanceChanged, SurfaceID: id, Seat: m.cfg.DefaultSeat, Accepted: true}}
	}
	return nil
}

// RemoveSurface forgets a surface and any focus it held.
func (m *Manager) RemoveSurface(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accepted, id)
	delete(m.focus, id)
	m.surfaces = slices.DeleteFunc(m.surfaces, func(v uint32) bool { return v == id })
	if m.keyboard == id {
		m.keyboard = layout.InvalidID
	}
}

// AddSeat registers a seat. The default seat is accepted by every tracked
// surface, producing one acceptance event per surface. Adding a known seat
// updates its capabilities instead.
func (m *Manager) AddSeat(name string, caps Device) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seats[name]; ok {
		return m.updateSeatLocked(name, caps)
	}
	m.seats[name] = caps
	m.log.Debug("seat created", "seat", name, "caps", caps.String())
	events := []Event{{Kind: SeatCreated, Seat: name, Caps: caps}}
	if !m.isDefault(name) {
		return events
	}
	for _, id := range m.surfaces {
		set := m.accepted[id]
		if _, ok := set[name]; ok {
			continue
		}
		set[name] = struct{}{}
		events = append(events, Event{Kind: AcceptanceChanged, SurfaceID: id, Seat: name, Accepted: true})
	}
	return events
}

// UpdateSeat changes the capabilities of a seat.
func (m *Manager) UpdateSeat(name string, caps Device) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seats[name]; !ok {
		return nil, fmt.Errorf("seat %q: %w", name, ErrUnknownSeat)
	}
	return m.updateSeatLocked(name, caps), nil
}

func (m *Manager) updateSeatLocked(name string, caps Device) []Event {
	if m.seats[name] == caps {
		return nil
	}
	m.seats[name] = caps
	return []Event{{Kind: SeatCapabilities, Seat: name, Caps: caps}}
}

// RemoveSeat drops a seat and removes it from every surface's accepted set.
func (m *Manager) RemoveSeat(name string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seats[name]; !ok {
		return nil, fmt.Errorf("seat %q: %w", name, ErrUnknownSeat)
	}
	delete(m.seats, name)
	for _, set := range m.accepted {
		delete(set, name)
	}
	m.log.Debug("seat destroyed", "seat", name)
	return []Event{{Kind: SeatDestroyed, Seat: name}}, nil
}

// Seats returns all seats sorted by name.
func (m *Manager) Seats() []Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Seat, 0, len(m.seats))
	for name, caps := range m.seats {
		out = append(out, Seat{Name: name, Capabilities: caps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Seat looks up one seat.
func (m *Manager) Seat(name string) (Seat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caps, ok := m.seats[name]
	if !ok {
		return Seat{}, false
	}
	return Seat{Name: name, Capabilities: caps}, true
}

// SetAcceptance adds or removes one seat from a surface's accepted set.
func (m *Manager) SetAcceptance(surfaceID uint32, seat string, accepted bool) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.accepted[surfaceID]
	if !ok {
		return nil, fmt.Errorf("surface %d: %w", surfaceID, layout.ErrNotFound)
	}
	if _, ok := m.seats[seat]; !ok {
		return nil, fmt.Errorf("seat %q: %w", seat, ErrUnknownSeat)
	}
	_, had := set[seat]
	if had == accepted {
		return nil, nil
	}
	if accepted {
		set[seat] = struct{}{}
	} else {
		delete(set, seat)
	}
	return []Event{{Kind: AcceptanceChanged, SurfaceID: surfaceID, Seat: seat, Accepted: accepted}}, nil
}

// Accepted returns the sorted seat names a surface accepts.
func (m *Manager) Accepted(surfaceID uint32) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.accepted[surfaceID]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, true
}

// SetFocus enables or disables focus for the given devices on one surface.
// Keyboard focus is exclusive: giving it to a surface takes it from the
// previous holder, which is reported as a separate event.
func (m *Manager) SetFocus(surfaceID uint32, devices Device, enabled bool) ([]Event, error) {
	if devices == 0 || devices&^DeviceAll != 0 {
		return nil, fmt.Errorf("device mask %v: %w", devices, layout.ErrInvalidArguments)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accepted[surfaceID]; !ok {
		return nil, fmt.Errorf("surface %d: %w", surfaceID, layout.ErrNotFound)
	}

	var events []Event
	if enabled && devices&DeviceKeyboard != 0 && m.keyboard != layout.InvalidID && m.keyboard != surfaceID {
		prev := m.keyboard
		m.focus[prev] &^= DeviceKeyboard
		events = append(events, Event{Kind: FocusChanged, SurfaceID: prev, Device: DeviceKeyboard, Enabled: false})
	}

	before := m.focus[surfaceID]
	if enabled {
		m.focus[surfaceID] = before | devices
	} else {
		m.focus[surfaceID] = before &^ devices
	}
	if devices&DeviceKeyboard != 0 {
		switch {
		case enabled:
			m.keyboard = surfaceID
		case m.keyboard == surfaceID:
			m.keyboard = layout.InvalidID
		}
	}
	if m.focus[surfaceID] != before {
		events = append(events, Event{Kind: FocusChanged, SurfaceID: surfaceID, Device: devices, Enabled: enabled})
	}
	return events, nil
}

// Focus returns the devices focused on a surface.
func (m *Manager) Focus(surfaceID uint32) (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accepted[surfaceID]; !ok {
		return 0, false
	}
	return m.focus[surfaceID], true
}

// KeyboardFocus returns the surface holding keyboard focus.
func (m *Manager) KeyboardFocus() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyboard, m.keyboard != layout.InvalidID
}

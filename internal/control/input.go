package control

import (
	"context"
	"slices"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// SetInputAcceptanceOn makes a surface accept exactly the given seats. Only
// the differences from the current set are sent.
func (c *Context) SetInputAcceptanceOn(ctx context.Context, surfaceID uint32, seats []string) error {
	for _, s := range seats {
		if s == "" {
			return invalidf("empty seat name")
		}
	}
	if _, err := c.ready(); err != nil {
		return err
	}
	if err := c.roundTrip(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.mirror.has(layout.KindSurface, surfaceID) {
		c.mu.Unlock()
		return failedf("unknown surface %d", surfaceID)
	}
	current := c.mirror.acceptedSeats(surfaceID)
	c.mu.Unlock()

	var changes []ipc.AcceptancePayload
	for _, s := range seats {
		if !slices.Contains(current, s) && !slices.ContainsFunc(changes, func(p ipc.AcceptancePayload) bool { return p.Seat == s }) {
			changes = append(changes, ipc.AcceptancePayload{SurfaceID: surfaceID, Seat: s, Accepted: true})
		}
	}
	for _, s := range current {
		if !slices.Contains(seats, s) {
			changes = append(changes, ipc.AcceptancePayload{SurfaceID: surfaceID, Seat: s, Accepted: false})
		}
	}
	for _, ch := range changes {
		if err := c.send(ipc.CommandInputSetAcceptance, ch); err != nil {
			return err
		}
	}
	return nil
}

// InputAcceptanceOn returns the seats a surface accepts.
func (c *Context) InputAcceptanceOn(ctx context.Context, surfaceID uint32) ([]string, error) {
	s, err := c.Surface(ctx, surfaceID)
	if err != nil {
		return nil, err
	}
	return s.Accepted, nil
}

// InputDevices returns the seats with at least one of the given devices.
func (c *Context) InputDevices(ctx context.Context, mask input.Device) ([]string, error) {
	if mask == 0 || mask&^input.DeviceAll != 0 {
		return nil, invalidf("bad device mask %v", mask)
	}
	var names []string
	err := c.view(ctx, func(m *mirror) error {
		for _, seat := range m.seatList() {
			if seat.Capabilities&mask != 0 {
				names = append(names, seat.Name)
			}
		}
		return nil
	})
	return names, err
}

// InputDeviceCapabilities returns the capabilities of a seat.
func (c *Context) InputDeviceCapabilities(ctx context.Context, seat string) (input.Device, error) {
	if seat == "" {
		return 0, invalidf("empty seat name")
	}
	var caps input.Device
	err := c.view(ctx, func(m *mirror) error {
		v, ok := m.seats[seat]
		if !ok {
			return failedf("unknown seat %q", seat)
		}
		caps = v
		return nil
	})
	return caps, err
}

// SetInputFocus enables or disables focus for devices on each surface, one
// message per surface. Keyboard focus can be given to a single surface only.
// Every argument is checked before anything is sent.
func (c *Context) SetInputFocus(surfaceIDs []uint32, devices input.Device, enabled bool) error {
	if len(surfaceIDs) == 0 {
		return invalidf("no surfaces")
	}
	if devices == 0 || devices&^input.DeviceAll != 0 {
		return invalidf("bad device mask %v", devices)
	}
	if enabled && devices&input.DeviceKeyboard != 0 && len(surfaceIDs) > 1 {
		return invalidf("keyboard focus on %d surfaces", len(surfaceIDs))
	}
	for _, id := range surfaceIDs {
		if err := c.send(ipc.CommandInputSetFocus, ipc.FocusPayload{SurfaceID: id, Devices: devices, Enabled: enabled}); err != nil {
			return err
		}
	}
	return nil
}

// FocusState is the focus held by one surface.
type FocusState struct {
	SurfaceID uint32       `json:"surface_id"`
	Devices   input.Device `json:"devices"`
}

// InputFocus returns every surface that holds some input focus.
func (c *Context) InputFocus(ctx context.Context) ([]FocusState, error) {
	var out []FocusState
	err := c.view(ctx, func(m *mirror) error {
		for _, id := range m.order[layout.KindSurface] {
			if s := m.surfaces[id]; s != nil && s.Focus != 0 {
				out = append(out, FocusState{SurfaceID: id, Devices: s.Focus})
			}
		}
		return nil
	})
	return out, err
}

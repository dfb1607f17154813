package controller

import (
	"github.com/1broseidon/layerctl/internal/eventlog"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// sceneWatcher turns scene notifications into session events.
type sceneWatcher struct{ c *Controller }

var _ layout.Watcher = sceneWatcher{}

func (w sceneWatcher) ObjectCreated(kind layout.Kind, id uint32) {
	if ev := w.c.createdEvent(kind, id); ev != nil {
		w.c.broadcast(ev)
	}
	w.c.audit.Record(eventlog.Entry{Action: eventlog.ActionCreate, Object: kind.String(), ID: id})
}

func (w sceneWatcher) ObjectDestroyed(kind layout.Kind, id uint32) {
	var typ ipc.EventType
	switch kind {
	case layout.KindSurface:
		typ = ipc.EventSurfaceDestroyed
	case layout.KindLayer:
		typ = ipc.EventLayerDestroyed
	case layout.KindScreen:
		typ = ipc.EventScreenDestroyed
	default:
		return
	}
	w.c.broadcastPayload(typ, ipc.ObjectPayload{ID: id})
	w.c.audit.Record(eventlog.Entry{Action: eventlog.ActionRemove, Object: kind.String(), ID: id})
}

func (w sceneWatcher) SurfaceChanged(id uint32, props layout.SurfaceProperties, mask layout.Mask) {
	if mask == 0 {
		return
	}
	w.c.broadcastPayload(ipc.EventSurfaceProperties, ipc.SurfacePayload{ID: id, Properties: props, Mask: mask})
}

func (w sceneWatcher) LayerChanged(id uint32, props layout.LayerProperties, mask layout.Mask) {
	if mask == 0 {
		return
	}
	w.c.broadcastPayload(ipc.EventLayerProperties, ipc.LayerPayload{ID: id, Properties: props, Mask: mask})
}

func (w sceneWatcher) ScreenChanged(id uint32, props layout.ScreenProperties) {
	w.c.broadcastPayload(ipc.EventScreenProperties, ipc.ScreenPayload{ID: id, Properties: props})
}

func (w sceneWatcher) RenderOrderChanged(kind layout.Kind, parent uint32, children []uint32) {
	w.c.broadcastPayload(ipc.EventRenderOrder, ipc.RenderOrderPayload{Kind: kind, Parent: parent, Children: children})
}

func (c *Controller) createdEvent(kind layout.Kind, id uint32) *ipc.Event {
	var (
		ev  *ipc.Event
		err error
	)
	switch kind {
	case layout.KindSurface:
		props, ok := c.scene.Surface(id)
		if !ok {
			return nil
		}
		ev, err = ipc.NewEvent(ipc.EventSurfaceCreated, ipc.SurfacePayload{ID: id, Properties: props})
	case layout.KindLayer:
		props, ok := c.scene.Layer(id)
		if !ok {
			return nil
		}
		ev, err = ipc.NewEvent(ipc.EventLayerCreated, ipc.LayerPayload{ID: id, Properties: props})
	case layout.KindScreen:
		props, ok := c.scene.Screen(id)
		if !ok {
			return nil
		}
		ev, err = ipc.NewEvent(ipc.EventScreenCreated, ipc.ScreenPayload{ID: id, Properties: props})
	}
	if err != nil {
		c.log.Error("failed to build created event", "kind", kind, "id", id, "error", err)
		return nil
	}
	return ev
}

func inputEvent(e input.Event) (*ipc.Event, error) {
	switch e.Kind {
	case input.SeatCreated:
		return ipc.NewEvent(ipc.EventSeatCreated, ipc.SeatPayload{Name: e.Seat, Capabilities: e.Caps})
	case input.SeatCapabilities:
		return ipc.NewEvent(ipc.EventSeatCapabilities, ipc.SeatPayload{Name: e.Seat, Capabilities: e.Caps})
	case input.SeatDestroyed:
		return ipc.NewEvent(ipc.EventSeatDestroyed, ipc.SeatPayload{Name: e.Seat})
	case input.AcceptanceChanged:
		return ipc.NewEvent(ipc.EventInputAcceptance, ipc.AcceptancePayload{SurfaceID: e.SurfaceID, Seat: e.Seat, Accepted: e.Accepted})
	default:
		return ipc.NewEvent(ipc.EventInputFocus, ipc.FocusPayload{SurfaceID: e.SurfaceID, Devices: e.Device, Enabled: e.Enabled})
	}
}

func (c *Controller) broadcastInput(events []input.Event) {
	for _, e := range events {
		ev, err := inputEvent(e)
		if err != nil {
			c.log.Error("failed to build input event", "error", err)
			continue
		}
		c.broadcast(ev)
	}
}

func (c *Controller) broadcastPayload(typ ipc.EventType, payload any) {
	ev, err := ipc.NewEvent(typ, payload)
	if err != nil {
		c.log.Error("failed to build event", "type", typ, "error", err)
		return
	}
	c.broadcast(ev)
}

func (c *Controller) broadcast(ev *ipc.Event) {
	c.mu.Lock()
	peers := make([]ipc.Peer, 0, len(c.peerOrder))
	for _, id := range c.peerOrder {
		peers = append(peers, c.peers[id])
	}
	c.mu.Unlock()

	for _, p := range peers {
		if !p.Send(ev) {
			c.log.Debug("event not delivered", "session", p.ID(), "type", ev.Type)
		}
	}
}

func (c *Controller) send(p ipc.Peer, typ ipc.EventType, payload any) {
	ev, err := ipc.NewEvent(typ, payload)
	if err != nil {
		c.log.Error("failed to build event", "type", typ, "error", err)
		return
	}
	p.Send(ev)
}

// replay brings a newly bound session up to date.
func (c *Controller) replay(p ipc.Peer) {
	for _, kind := range []layout.Kind{layout.KindScreen, layout.KindLayer, layout.KindSurface} {
		for _, id := range c.scene.List(kind) {
			if ev := c.createdEvent(kind, id); ev != nil {
				p.Send(ev)
			}
		}
	}
	for _, id := range c.scene.List(layout.KindScreen) {
		if order, ok := c.scene.ScreenRenderOrder(id); ok && len(order) > 0 {
			c.send(p, ipc.EventRenderOrder, ipc.RenderOrderPayload{Kind: layout.KindScreen, Parent: id, Children: order})
		}
	}
	for _, id := range c.scene.List(layout.KindLayer) {
		if order, ok := c.scene.LayerRenderOrder(id); ok && len(order) > 0 {
			c.send(p, ipc.EventRenderOrder, ipc.RenderOrderPayload{Kind: layout.KindLayer, Parent: id, Children: order})
		}
	}
	for _, seat := range c.input.Seats() {
		c.send(p, ipc.EventSeatCreated, ipc.SeatPayload{Name: seat.Name, Capabilities: seat.Capabilities})
	}
	for _, id := range c.scene.List(layout.KindSurface) {
		seats, _ := c.input.Accepted(id)
		for _, seat := range seats {
			c.send(p, ipc.EventInputAcceptance, ipc.AcceptancePayload{SurfaceID: id, Seat: seat, Accepted: true})
		}
		if devices, ok := c.input.Focus(id); ok && devices != 0 {
			c.send(p, ipc.EventInputFocus, ipc.FocusPayload{SurfaceID: id, Devices: devices, Enabled: true})
		}
	}
}

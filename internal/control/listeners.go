package control

import (
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// SurfaceListener is told about property changes of one surface.
type SurfaceListener func(id uint32, props layout.SurfaceProperties, mask layout.Mask)

// LayerListener is told about property changes of one layer.
type LayerListener func(id uint32, props layout.LayerProperties, mask layout.Mask)

// GlobalListener is told about every object creation and destruction.
type GlobalListener func(kind layout.Kind, id uint32, created bool)

// EventListener sees every session event except sync completions.
type EventListener func(ev *ipc.Event)

// ErrorListener is called for every protocol error in addition to the
// Errors channel.
type ErrorListener func(err ProtocolError)

type listeners struct {
	surface map[uint32]SurfaceListener
	layer   map[uint32]LayerListener
	global  GlobalListener
	event   EventListener
	err     ErrorListener
}

// collect returns the callbacks an event triggers. Called with Context.mu
// held, after the mirror has been updated.
func (l *listeners) collect(ev *ipc.Event, payload any) []func() {
	var calls []func()
	if fn := l.event; fn != nil {
		calls = append(calls, func() { fn(ev) })
	}

	switch p := payload.(type) {
	case ipc.SurfacePayload:
		if ev.Type == ipc.EventSurfaceCreated {
			calls = l.lifecycle(calls, layout.KindSurface, p.ID, true)
		} else if fn := l.surface[p.ID]; fn != nil && p.Mask != 0 {
			calls = append(calls, func() { fn(p.ID, p.Properties, p.Mask) })
		}
	case ipc.LayerPayload:
		if ev.Type == ipc.EventLayerCreated {
			calls = l.lifecycle(calls, layout.KindLayer, p.ID, true)
		} else if fn := l.layer[p.ID]; fn != nil && p.Mask != 0 {
			calls = append(calls, func() { fn(p.ID, p.Properties, p.Mask) })
		}
	case ipc.ScreenPayload:
		if ev.Type == ipc.EventScreenCreated {
			calls = l.lifecycle(calls, layout.KindScreen, p.ID, true)
		}
	case ipc.ObjectPayload:
		var kind layout.Kind
		switch ev.Type {
		case ipc.EventSurfaceDestroyed:
			kind = layout.KindSurface
			delete(l.surface, p.ID)
		case ipc.EventLayerDestroyed:
			kind = layout.KindLayer
			delete(l.layer, p.ID)
		default:
			kind = layout.KindScreen
		}
		calls = l.lifecycle(calls, kind, p.ID, false)
	case ipc.ErrorPayload:
		if fn := l.err; fn != nil {
			perr := ProtocolError{Kind: p.ObjectKind, ID: p.ObjectID, Code: p.Code, Message: p.Message}
			calls = append(calls, func() { fn(perr) })
		}
	}
	return calls
}

func (l *listeners) lifecycle(calls []func(), kind layout.Kind, id uint32, created bool) []func() {
	if fn := l.global; fn != nil {
		calls = append(calls, func() { fn(kind, id, created) })
	}
	return calls
}

// SetSurfaceListener registers fn for a surface, replacing any previous
// listener. A nil fn unregisters. The surface must be known to the mirror.
func (c *Context) SetSurfaceListener(id uint32, fn SurfaceListener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil || !c.mirror.has(layout.KindSurface, id) {
		return invalidf("unknown surface %d", id)
	}
	if fn == nil {
		delete(c.listeners.surface, id)
		return nil
	}
	c.listeners.surface[id] = fn
	return nil
}

// RemoveSurfaceListener unregisters the listener of a surface.
func (c *Context) RemoveSurfaceListener(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil || !c.mirror.has(layout.KindSurface, id) {
		return failedf("unknown surface %d", id)
	}
	if _, ok := c.listeners.surface[id]; !ok {
		return invalidf("surface %d has no listener", id)
	}
	delete(c.listeners.surface, id)
	return nil
}

// SetLayerListener registers fn for a layer, replacing any previous
// listener. A nil fn unregisters.
func (c *Context) SetLayerListener(id uint32, fn LayerListener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil || !c.mirror.has(layout.KindLayer, id) {
		return invalidf("unknown layer %d", id)
	}
	if fn == nil {
		delete(c.listeners.layer, id)
		return nil
	}
	c.listeners.layer[id] = fn
	return nil
}

// RemoveLayerListener unregisters the listener of a layer.
func (c *Context) RemoveLayerListener(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil || !c.mirror.has(layout.KindLayer, id) {
		return failedf("unknown layer %d", id)
	}
	if _, ok := c.listeners.layer[id]; !ok {
		return invalidf("layer %d has no listener", id)
	}
	delete(c.listeners.layer, id)
	return nil
}

// SetGlobalListener sets the process-wide lifecycle listener. Nil clears it.
func (c *Context) SetGlobalListener(fn GlobalListener) {
	c.mu.Lock()
	c.listeners.global = fn
	c.mu.Unlock()
}

// SetEventListener sets a listener for every raw session event.
func (c *Context) SetEventListener(fn EventListener) {
	c.mu.Lock()
	c.listeners.event = fn
	c.mu.Unlock()
}

// OnError sets a callback for protocol errors.
func (c *Context) OnError(fn ErrorListener) {
	c.mu.Lock()
	c.listeners.err = fn
	c.mu.Unlock()
}

// OnShutdown sets a callback run once when the session to the daemon is lost
// without Destroy having been called. The context is then disconnected.
func (c *Context) OnShutdown(fn func()) {
	c.mu.Lock()
	c.shutdown = fn
	c.mu.Unlock()
}

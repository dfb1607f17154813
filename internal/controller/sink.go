package controller

import (
	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

// backendSink queues compositor events onto the dispatch goroutine.
type backendSink struct{ c *Controller }

var _ compositor.Sink = backendSink{}

func (s backendSink) OutputAdded(out compositor.Output) {
	s.c.enqueue(func() { s.c.upsertOutput(out) })
}

func (s backendSink) OutputChanged(out compositor.Output) {
	s.c.enqueue(func() { s.c.upsertOutput(out) })
}

func (s backendSink) OutputRemoved(id uint32) {
	s.c.enqueue(func() { s.c.removeOutput(id) })
}

func (s backendSink) SurfaceAdded(info compositor.SurfaceInfo) {
	s.c.enqueue(func() { s.c.addBackendSurface(info) })
}

func (s backendSink) SurfaceConfigured(id uint32, width, height int) {
	s.c.enqueue(func() {
		if id == s.c.background {
			return
		}
		if err := s.c.scene.ConfigureSurface(id, width, height); err != nil {
			s.c.log.Debug("configure for untracked surface", "surface_id", id, "error", err)
			return
		}
		s.c.dirty = true
	})
}

func (s backendSink) SurfaceContent(id uint32, available bool) {
	s.c.enqueue(func() {
		if id == s.c.background {
			return
		}
		if err := s.c.scene.SetSurfaceContent(id, available); err != nil {
			s.c.log.Debug("content for untracked surface", "surface_id", id, "error", err)
			return
		}
		if available {
			s.c.scene.FrameSurface(id)
		}
		s.c.dirty = true
	})
}

func (s backendSink) SurfaceRemoved(id uint32) {
	s.c.enqueue(func() {
		if id == s.c.background {
			return
		}
		s.c.removeSurface(id)
	})
}

func (s backendSink) SeatAdded(name string, caps input.Device) {
	s.c.enqueue(func() {
		s.c.broadcastInput(s.c.input.AddSeat(name, caps))
	})
}

func (s backendSink) SeatChanged(name string, caps input.Device) {
	s.c.enqueue(func() {
		events, err := s.c.input.UpdateSeat(name, caps)
		if err != nil {
			s.c.log.Warn("capabilities for unknown seat", "seat", name)
			return
		}
		s.c.broadcastInput(events)
	})
}

func (s backendSink) SeatRemoved(name string) {
	s.c.enqueue(func() {
		events, err := s.c.input.RemoveSeat(name)
		if err != nil {
			s.c.log.Warn("removal of unknown seat", "seat", name)
			return
		}
		s.c.broadcastInput(events)
	})
}

func (c *Controller) upsertOutput(out compositor.Output) {
	id := c.screenFor(out.ID, out.Name)
	props := layout.ScreenProperties{
		ConnectorName: out.Name,
		Width:         out.Bounds.Width,
		Height:        out.Bounds.Height,
	}
	if prev, ok := c.outputs[out.ID]; ok && prev != id {
		c.scene.Destroy(layout.KindScreen, prev)
	}
	c.outputs[out.ID] = id

	if c.scene.Has(layout.KindScreen, id) {
		if err := c.scene.UpdateScreen(id, props); err != nil {
			c.log.Warn("failed to update screen", "screen_id", id, "error", err)
		}
		c.dirty = true
		return
	}
	if err := c.scene.CreateScreen(id, props); err != nil {
		c.log.Warn("failed to create screen", "screen_id", id, "output", out.Name, "error", err)
		delete(c.outputs, out.ID)
		return
	}
	c.log.Info("screen created", "screen_id", id, "output", out.Name, "width", props.Width, "height", props.Height)
}

func (c *Controller) removeOutput(outputID uint32) {
	id, ok := c.outputs[outputID]
	if !ok {
		return
	}
	delete(c.outputs, outputID)
	if err := c.scene.Destroy(layout.KindScreen, id); err != nil {
		c.log.Warn("failed to destroy screen", "screen_id", id, "error", err)
		return
	}
	c.log.Info("screen destroyed", "screen_id", id)
}

func (c *Controller) addBackendSurface(info compositor.SurfaceInfo) {
	if info.ID == c.background {
		c.log.Debug("ignoring background surface", "surface_id", info.ID)
		return
	}
	props := layout.DefaultSurfaceProperties()
	props.CreatorPID = info.PID
	props.OrigSourceWidth = info.Bounds.Width
	props.OrigSourceHeight = info.Bounds.Height
	props.SourceRect = layout.Rect{Width: info.Bounds.Width, Height: info.Bounds.Height}
	props.DestRect = layout.Rect{Width: info.Bounds.Width, Height: info.Bounds.Height}
	props.Visibility = info.Visible
	props.ContentAvailable = info.Visible

	if _, err := c.scene.CreateSurface(info.ID, props); err != nil {
		c.log.Warn("failed to track surface", "surface_id", info.ID, "error", err)
		return
	}
	c.log.Debug("surface tracked", "surface_id", info.ID, "pid", info.PID, "title", info.Title)
	c.broadcastInput(c.input.AddSurface(info.ID))
}

func (c *Controller) removeSurface(id uint32) error {
	if err := c.scene.Destroy(layout.KindSurface, id); err != nil {
		return err
	}
	c.input.RemoveSurface(id)
	return nil
}

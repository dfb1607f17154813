package controller

import (
	"errors"
	"fmt"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/eventlog"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Attach registers a bound session and replays the current scene to it.
func (c *Controller) Attach(p ipc.Peer) {
	c.enqueue(func() {
		c.replay(p)
		c.mu.Lock()
		c.peers[p.ID()] = p
		c.peerOrder = append(c.peerOrder, p.ID())
		c.mu.Unlock()
		c.audit.Record(eventlog.Entry{Action: eventlog.ActionBind, Session: p.ID(), Details: map[string]any{"pid": p.PID()}})
	})
}

// Detach forgets a session. Objects it created stay.
func (c *Controller) Detach(p ipc.Peer) {
	c.enqueue(func() {
		c.mu.Lock()
		delete(c.peers, p.ID())
		for i, id := range c.peerOrder {
			if id == p.ID() {
				c.peerOrder = append(c.peerOrder[:i], c.peerOrder[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		c.audit.Record(eventlog.Entry{Action: eventlog.ActionUnbind, Session: p.ID()})
	})
}

// Dispatch queues one session request.
func (c *Controller) Dispatch(p ipc.Peer, req *ipc.Request) {
	c.enqueue(func() { c.handle(p, req) })
}

// requestError is reported to the requesting session as an ERROR event.
type requestError struct {
	kind layout.Kind
	id   uint32
	code ipc.ErrorCode
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }

func fail(kind layout.Kind, id uint32, err error) *requestError {
	code := ipc.ErrorBadParam
	switch {
	case errors.Is(err, layout.ErrNotFound):
		code = ipc.ErrorNoSuchObject
	case errors.Is(err, layout.ErrDuplicateID):
		code = ipc.ErrorDuplicateID
	}
	return &requestError{kind: kind, id: id, code: code, err: err}
}

func badPayload(kind layout.Kind, err error) *requestError {
	return &requestError{kind: kind, id: layout.InvalidID, code: ipc.ErrorBadParam, err: err}
}

func (c *Controller) handle(p ipc.Peer, req *ipc.Request) {
	switch req.Command {
	case ipc.CommandSync:
		p.Send(&ipc.Event{Type: ipc.EventDone, Serial: req.Serial})
		return
	case ipc.CommandCommit:
		c.commit()
		c.audit.Record(eventlog.Entry{Action: eventlog.ActionCommit, Session: p.ID()})
		return
	}

	rerr := c.apply(p, req)
	if rerr == nil {
		return
	}
	c.log.Debug("session request failed", "session", p.ID(), "command", req.Command, "error", rerr)
	c.audit.Record(eventlog.Entry{
		Action:  eventlog.ActionError,
		Object:  rerr.kind.String(),
		ID:      rerr.id,
		Session: p.ID(),
		Details: map[string]any{"command": string(req.Command), "code": string(rerr.code)},
	})
	c.send(p, ipc.EventError, ipc.ErrorPayload{
		ObjectKind: rerr.kind,
		ObjectID:   rerr.id,
		Code:       rerr.code,
		Message:    rerr.Error(),
	})
}

func (c *Controller) record(p ipc.Peer, action eventlog.Action, kind layout.Kind, id uint32, req *ipc.Request) {
	c.audit.Record(eventlog.Entry{
		Action:  action,
		Object:  kind.String(),
		ID:      id,
		Session: p.ID(),
		Details: map[string]any{"command": string(req.Command)},
	})
}

func (c *Controller) apply(p ipc.Peer, req *ipc.Request) *requestError {
	switch req.Command {
	case ipc.CommandSurfaceCreate:
		return c.createSurface(p, req)
	case ipc.CommandSurfaceRemove:
		var pl ipc.ObjectPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		if err := c.removeSurface(pl.ID); err != nil {
			return fail(layout.KindSurface, pl.ID, err)
		}
	case ipc.CommandSurfaceSetVisibility:
		var pl ipc.VisibilityPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		if err := c.scene.SetSurfaceVisibility(pl.ID, pl.Visible); err != nil {
			return fail(layout.KindSurface, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindSurface, pl.ID, req)
	case ipc.CommandSurfaceSetOpacity:
		var pl ipc.OpacityPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		if err := c.scene.SetSurfaceOpacity(pl.ID, pl.Opacity); err != nil {
			return fail(layout.KindSurface, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindSurface, pl.ID, req)
	case ipc.CommandSurfaceSetSourceRect, ipc.CommandSurfaceSetDestRect:
		var pl ipc.RectPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		set := c.scene.SetSurfaceSourceRect
		if req.Command == ipc.CommandSurfaceSetDestRect {
			set = c.scene.SetSurfaceDestRect
		}
		if err := set(pl.ID, pl.Rect); err != nil {
			return fail(layout.KindSurface, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindSurface, pl.ID, req)
	case ipc.CommandSurfaceSetType:
		var pl ipc.SurfaceTypePayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		typ, err := layout.ParseSurfaceType(pl.Type)
		if err != nil {
			return fail(layout.KindSurface, pl.ID, fmt.Errorf("%w: %v", layout.ErrInvalidArguments, err))
		}
		if err := c.scene.SetSurfaceType(pl.ID, typ); err != nil {
			return fail(layout.KindSurface, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindSurface, pl.ID, req)

	case ipc.CommandLayerCreate:
		var pl ipc.CreatePayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		if _, err := c.scene.CreateLayer(pl.ID, pl.Width, pl.Height); err != nil {
			return fail(layout.KindLayer, pl.ID, err)
		}
	case ipc.CommandLayerRemove:
		var pl ipc.ObjectPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		if err := c.scene.Destroy(layout.KindLayer, pl.ID); err != nil {
			return fail(layout.KindLayer, pl.ID, err)
		}
	case ipc.CommandLayerSetVisibility:
		var pl ipc.VisibilityPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		if err := c.scene.SetLayerVisibility(pl.ID, pl.Visible); err != nil {
			return fail(layout.KindLayer, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindLayer, pl.ID, req)
	case ipc.CommandLayerSetOpacity:
		var pl ipc.OpacityPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		if err := c.scene.SetLayerOpacity(pl.ID, pl.Opacity); err != nil {
			return fail(layout.KindLayer, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindLayer, pl.ID, req)
	case ipc.CommandLayerSetSourceRect, ipc.CommandLayerSetDestRect:
		var pl ipc.RectPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		set := c.scene.SetLayerSourceRect
		if req.Command == ipc.CommandLayerSetDestRect {
			set = c.scene.SetLayerDestRect
		}
		if err := set(pl.ID, pl.Rect); err != nil {
			return fail(layout.KindLayer, pl.ID, err)
		}
		c.record(p, eventlog.ActionProperty, layout.KindLayer, pl.ID, req)
	case ipc.CommandLayerSetRenderOrder:
		var pl ipc.RenderOrderPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		if err := c.scene.SetLayerRenderOrder(pl.Parent, pl.Children); err != nil {
			return fail(layout.KindLayer, pl.Parent, err)
		}
		c.record(p, eventlog.ActionRenderOrder, layout.KindLayer, pl.Parent, req)
	case ipc.CommandLayerAddSurface, ipc.CommandLayerRemoveSurface:
		var pl ipc.MembershipPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindLayer, err)
		}
		op := c.scene.AddSurfaceToLayer
		if req.Command == ipc.CommandLayerRemoveSurface {
			op = c.scene.RemoveSurfaceFromLayer
		}
		if err := op(pl.Parent, pl.Child); err != nil {
			return fail(layout.KindLayer, pl.Parent, err)
		}
		c.record(p, eventlog.ActionMembership, layout.KindLayer, pl.Parent, req)

	case ipc.CommandScreenSetRenderOrder:
		var pl ipc.RenderOrderPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindScreen, err)
		}
		if err := c.scene.SetScreenRenderOrder(pl.Parent, pl.Children); err != nil {
			return fail(layout.KindScreen, pl.Parent, err)
		}
		c.record(p, eventlog.ActionRenderOrder, layout.KindScreen, pl.Parent, req)
	case ipc.CommandScreenAddLayer, ipc.CommandScreenRemoveLayer:
		var pl ipc.MembershipPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindScreen, err)
		}
		op := c.scene.AddLayerToScreen
		if req.Command == ipc.CommandScreenRemoveLayer {
			op = c.scene.RemoveLayerFromScreen
		}
		if err := op(pl.Parent, pl.Child); err != nil {
			return fail(layout.KindScreen, pl.Parent, err)
		}
		c.record(p, eventlog.ActionMembership, layout.KindScreen, pl.Parent, req)

	case ipc.CommandInputSetAcceptance:
		var pl ipc.AcceptancePayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		events, err := c.input.SetAcceptance(pl.SurfaceID, pl.Seat, pl.Accepted)
		if err != nil {
			return fail(layout.KindSurface, pl.SurfaceID, err)
		}
		c.broadcastInput(events)
		c.record(p, eventlog.ActionInput, layout.KindSurface, pl.SurfaceID, req)
	case ipc.CommandInputSetFocus:
		var pl ipc.FocusPayload
		if err := req.Decode(&pl); err != nil {
			return badPayload(layout.KindSurface, err)
		}
		events, err := c.input.SetFocus(pl.SurfaceID, pl.Devices, pl.Enabled)
		if err != nil {
			return fail(layout.KindSurface, pl.SurfaceID, err)
		}
		c.broadcastInput(events)
		if pl.Enabled && pl.Devices&input.DeviceKeyboard != 0 {
			if f, ok := c.backend.(compositor.Focuser); ok {
				if err := f.FocusSurface(pl.SurfaceID); err != nil {
					c.log.Warn("backend focus failed", "surface_id", pl.SurfaceID, "error", err)
				}
			}
		}
		c.record(p, eventlog.ActionInput, layout.KindSurface, pl.SurfaceID, req)

	default:
		return &requestError{
			kind: layout.KindSurface,
			id:   layout.InvalidID,
			code: ipc.ErrorNotSupported,
			err:  fmt.Errorf("unsupported command %q", req.Command),
		}
	}
	return nil
}

func (c *Controller) createSurface(p ipc.Peer, req *ipc.Request) *requestError {
	var pl ipc.CreatePayload
	if err := req.Decode(&pl); err != nil {
		return badPayload(layout.KindSurface, err)
	}
	if pl.ID == c.background && pl.ID != layout.InvalidID {
		return fail(layout.KindSurface, pl.ID, fmt.Errorf("surface %d is the background: %w", pl.ID, layout.ErrInvalidArguments))
	}
	if pl.Width < 0 || pl.Height < 0 {
		return fail(layout.KindSurface, pl.ID, fmt.Errorf("negative size: %w", layout.ErrInvalidArguments))
	}
	props := layout.DefaultSurfaceProperties()
	props.CreatorPID = p.PID()
	props.OrigSourceWidth = pl.Width
	props.OrigSourceHeight = pl.Height
	props.SourceRect = layout.Rect{Width: pl.Width, Height: pl.Height}
	props.DestRect = layout.Rect{Width: pl.Width, Height: pl.Height}

	id, err := c.scene.CreateSurface(pl.ID, props)
	if err != nil {
		return fail(layout.KindSurface, pl.ID, err)
	}
	c.broadcastInput(c.input.AddSurface(id))
	return nil
}

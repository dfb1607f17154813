package control

import (
	"context"

	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// LayerCreateWithDimension creates a layer. With InvalidID the lowest free id
// from 0 is used. The chosen id is returned; an id that is already taken
// fails without sending anything.
func (c *Context) LayerCreateWithDimension(ctx context.Context, id uint32, width, height int) (uint32, error) {
	return c.create(ctx, layout.KindLayer, ipc.CommandLayerCreate, id, width, height)
}

// SurfaceCreate creates a client-owned surface. Ids are assigned like
// LayerCreateWithDimension.
func (c *Context) SurfaceCreate(ctx context.Context, id uint32, width, height int) (uint32, error) {
	return c.create(ctx, layout.KindSurface, ipc.CommandSurfaceCreate, id, width, height)
}

func (c *Context) create(ctx context.Context, kind layout.Kind, cmd ipc.CommandType, id uint32, width, height int) (uint32, error) {
	if width < 0 || height < 0 {
		return layout.InvalidID, invalidf("negative %s size %dx%d", kind, width, height)
	}
	if _, err := c.ready(); err != nil {
		return layout.InvalidID, err
	}
	if err := c.roundTrip(ctx); err != nil {
		return layout.InvalidID, err
	}

	c.mu.Lock()
	taken := func(v uint32) bool {
		_, reserved := c.reserved[objectKey{kind, v}]
		return reserved || c.mirror.has(kind, v)
	}
	if id == layout.InvalidID {
		id = 0
		for taken(id) {
			id++
			if id == layout.InvalidID {
				c.mu.Unlock()
				return layout.InvalidID, failedf("no free %s id", kind)
			}
		}
	} else if taken(id) {
		c.mu.Unlock()
		return layout.InvalidID, failedf("%s %d already exists", kind, id)
	}
	c.reserved[objectKey{kind, id}] = struct{}{}
	c.mu.Unlock()

	if err := c.send(cmd, ipc.CreatePayload{ID: id, Width: width, Height: height}); err != nil {
		c.mu.Lock()
		delete(c.reserved, objectKey{kind, id})
		c.mu.Unlock()
		return layout.InvalidID, err
	}
	return id, nil
}

// LayerRemove destroys a layer. A layer unknown to the mirror fails locally.
func (c *Context) LayerRemove(id uint32) error {
	return c.remove(layout.KindLayer, ipc.CommandLayerRemove, id)
}

// SurfaceRemove destroys a surface.
func (c *Context) SurfaceRemove(id uint32) error {
	return c.remove(layout.KindSurface, ipc.CommandSurfaceRemove, id)
}

func (c *Context) remove(kind layout.Kind, cmd ipc.CommandType, id uint32) error {
	if _, err := c.ready(); err != nil {
		return err
	}
	c.mu.Lock()
	known := c.mirror.has(kind, id)
	c.mu.Unlock()
	if !known {
		return failedf("unknown %s %d", kind, id)
	}
	return c.send(cmd, ipc.ObjectPayload{ID: id})
}

func (c *Context) SurfaceSetVisibility(id uint32, visible bool) error {
	return c.send(ipc.CommandSurfaceSetVisibility, ipc.VisibilityPayload{ID: id, Visible: visible})
}

func (c *Context) SurfaceSetOpacity(id uint32, opacity float64) error {
	return c.send(ipc.CommandSurfaceSetOpacity, ipc.OpacityPayload{ID: id, Opacity: opacity})
}

func (c *Context) SurfaceSetSourceRect(id uint32, r layout.Rect) error {
	if !r.Valid() {
		return invalidf("negative source rectangle %v", r)
	}
	return c.send(ipc.CommandSurfaceSetSourceRect, ipc.RectPayload{ID: id, Rect: r})
}

func (c *Context) SurfaceSetDestRect(id uint32, r layout.Rect) error {
	if !r.Valid() {
		return invalidf("negative destination rectangle %v", r)
	}
	return c.send(ipc.CommandSurfaceSetDestRect, ipc.RectPayload{ID: id, Rect: r})
}

func (c *Context) SurfaceSetType(id uint32, typ layout.SurfaceType) error {
	if typ != layout.SurfaceTypeDefault && typ != layout.SurfaceTypeDesktop {
		return invalidf("unknown surface type %d", int(typ))
	}
	return c.send(ipc.CommandSurfaceSetType, ipc.SurfaceTypePayload{ID: id, Type: typ.String()})
}

func (c *Context) LayerSetVisibility(id uint32, visible bool) error {
	return c.send(ipc.CommandLayerSetVisibility, ipc.VisibilityPayload{ID: id, Visible: visible})
}

func (c *Context) LayerSetOpacity(id uint32, opacity float64) error {
	return c.send(ipc.CommandLayerSetOpacity, ipc.OpacityPayload{ID: id, Opacity: opacity})
}

func (c *Context) LayerSetSourceRect(id uint32, r layout.Rect) error {
	if !r.Valid() {
		return invalidf("negative source rectangle %v", r)
	}
	return c.send(ipc.CommandLayerSetSourceRect, ipc.RectPayload{ID: id, Rect: r})
}

func (c *Context) LayerSetDestRect(id uint32, r layout.Rect) error {
	if !r.Valid() {
		return invalidf("negative destination rectangle %v", r)
	}
	return c.send(ipc.CommandLayerSetDestRect, ipc.RectPayload{ID: id, Rect: r})
}

func hasDuplicate(ids []uint32) bool {
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// LayerSetRenderOrder replaces the surfaces of a layer in one message.
func (c *Context) LayerSetRenderOrder(layerID uint32, surfaces []uint32) error {
	if hasDuplicate(surfaces) {
		return invalidf("duplicate surface in render order")
	}
	return c.send(ipc.CommandLayerSetRenderOrder, ipc.RenderOrderPayload{Kind: layout.KindLayer, Parent: layerID, Children: nonNil(surfaces)})
}

// ScreenSetRenderOrder replaces the layers of a screen in one message.
func (c *Context) ScreenSetRenderOrder(screenID uint32, layers []uint32) error {
	if hasDuplicate(layers) {
		return invalidf("duplicate layer in render order")
	}
	return c.send(ipc.CommandScreenSetRenderOrder, ipc.RenderOrderPayload{Kind: layout.KindScreen, Parent: screenID, Children: nonNil(layers)})
}

func nonNil(ids []uint32) []uint32 {
	if ids == nil {
		return []uint32{}
	}
	return ids
}

func (c *Context) LayerAddSurface(layerID, surfaceID uint32) error {
	return c.send(ipc.CommandLayerAddSurface, ipc.MembershipPayload{Parent: layerID, Child: surfaceID})
}

func (c *Context) LayerRemoveSurface(layerID, surfaceID uint32) error {
	return c.send(ipc.CommandLayerRemoveSurface, ipc.MembershipPayload{Parent: layerID, Child: surfaceID})
}

func (c *Context) ScreenAddLayer(screenID, layerID uint32) error {
	return c.send(ipc.CommandScreenAddLayer, ipc.MembershipPayload{Parent: screenID, Child: layerID})
}

func (c *Context) ScreenRemoveLayer(screenID, layerID uint32) error {
	return c.send(ipc.CommandScreenRemoveLayer, ipc.MembershipPayload{Parent: screenID, Child: layerID})
}

// Commit asks the daemon to apply every pending change and notify.
func (c *Context) Commit() error {
	return c.send(ipc.CommandCommit, nil)
}

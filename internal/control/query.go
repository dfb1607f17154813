package control

import (
	"context"

	"github.com/1broseidon/layerctl/internal/layout"
)

// ScreenIDs returns every screen id in creation order.
func (c *Context) ScreenIDs(ctx context.Context) ([]uint32, error) {
	return c.listIDs(ctx, layout.KindScreen)
}

// LayerIDs returns every layer id in creation order.
func (c *Context) LayerIDs(ctx context.Context) ([]uint32, error) {
	return c.listIDs(ctx, layout.KindLayer)
}

// SurfaceIDs returns every surface id in creation order.
func (c *Context) SurfaceIDs(ctx context.Context) ([]uint32, error) {
	return c.listIDs(ctx, layout.KindSurface)
}

func (c *Context) listIDs(ctx context.Context, kind layout.Kind) ([]uint32, error) {
	var ids []uint32
	err := c.view(ctx, func(m *mirror) error {
		ids = m.ids(kind)
		return nil
	})
	return ids, err
}

// LayerIDsOnScreen returns a screen's render order.
func (c *Context) LayerIDsOnScreen(ctx context.Context, screenID uint32) ([]uint32, error) {
	scr, err := c.Screen(ctx, screenID)
	if err != nil {
		return nil, err
	}
	return scr.Layers, nil
}

// SurfaceIDsOnLayer returns a layer's render order.
func (c *Context) SurfaceIDsOnLayer(ctx context.Context, layerID uint32) ([]uint32, error) {
	l, err := c.Layer(ctx, layerID)
	if err != nil {
		return nil, err
	}
	return l.Surfaces, nil
}

// Screen returns the properties and render order of a screen.
func (c *Context) Screen(ctx context.Context, id uint32) (Screen, error) {
	var out Screen
	err := c.view(ctx, func(m *mirror) error {
		scr, ok := m.screen(id)
		if !ok {
			return failedf("unknown screen %d", id)
		}
		out = scr
		return nil
	})
	return out, err
}

// ScreenResolution returns a screen's width and height.
func (c *Context) ScreenResolution(ctx context.Context, id uint32) (width, height int, err error) {
	scr, err := c.Screen(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return scr.Width, scr.Height, nil
}

// Layer returns the properties of a layer.
func (c *Context) Layer(ctx context.Context, id uint32) (Layer, error) {
	var out Layer
	err := c.view(ctx, func(m *mirror) error {
		l, ok := m.layer(id)
		if !ok {
			return failedf("unknown layer %d", id)
		}
		out = l
		return nil
	})
	return out, err
}

// Surface returns the properties of a surface, including input focus.
func (c *Context) Surface(ctx context.Context, id uint32) (Surface, error) {
	var out Surface
	err := c.view(ctx, func(m *mirror) error {
		s, ok := m.surface(id)
		if !ok {
			return failedf("unknown surface %d", id)
		}
		out = s
		return nil
	})
	return out, err
}

// Scene returns a copy of the whole mirrored scene.
func (c *Context) Scene(ctx context.Context) (SceneState, error) {
	var out SceneState
	err := c.view(ctx, func(m *mirror) error {
		out = m.state()
		return nil
	})
	return out, err
}

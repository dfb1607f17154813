package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Client is the part of a control context the TUI drives.
type Client interface {
	Scene(ctx context.Context) (control.SceneState, error)
	LayerCreateWithDimension(ctx context.Context, id uint32, width, height int) (uint32, error)
	LayerRemove(id uint32) error
	LayerSetVisibility(id uint32, visible bool) error
	LayerSetOpacity(id uint32, opacity float64) error
	LayerSetSourceRect(id uint32, r layout.Rect) error
	LayerSetDestRect(id uint32, r layout.Rect) error
	LayerSetRenderOrder(layerID uint32, surfaces []uint32) error
	SurfaceSetVisibility(id uint32, visible bool) error
	SurfaceSetOpacity(id uint32, opacity float64) error
	SurfaceSetSourceRect(id uint32, r layout.Rect) error
	SurfaceSetDestRect(id uint32, r layout.Rect) error
	SurfaceSetType(id uint32, typ layout.SurfaceType) error
	ScreenSetRenderOrder(screenID uint32, layers []uint32) error
	ScreenAddLayer(screenID, layerID uint32) error
	Commit() error
}

var _ Client = (*control.Context)(nil)

// action is a parsed command line bound to one object.
type action func(c Client) error

// parseCommand turns a command line into an action on the selected object.
//
//	visible on|off
//	opacity 0.5
//	source|dest X Y W H
//	order ID...
//	type default|desktop
//	remove
func parseCommand(kind layout.Kind, id uint32, line string) (action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "visible":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: visible on|off")
		}
		var v bool
		switch args[0] {
		case "on", "true", "1":
			v = true
		case "off", "false", "0":
		default:
			return nil, fmt.Errorf("visible: want on or off, got %q", args[0])
		}
		switch kind {
		case layout.KindLayer:
			return func(c Client) error { return c.LayerSetVisibility(id, v) }, nil
		case layout.KindSurface:
			return func(c Client) error { return c.SurfaceSetVisibility(id, v) }, nil
		}

	case "opacity":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: opacity VALUE")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("opacity: %w", err)
		}
		switch kind {
		case layout.KindLayer:
			return func(c Client) error { return c.LayerSetOpacity(id, v) }, nil
		case layout.KindSurface:
			return func(c Client) error { return c.SurfaceSetOpacity(id, v) }, nil
		}

	case "source", "dest":
		r, err := parseRect(args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		switch {
		case kind == layout.KindLayer && name == "source":
			return func(c Client) error { return c.LayerSetSourceRect(id, r) }, nil
		case kind == layout.KindLayer:
			return func(c Client) error { return c.LayerSetDestRect(id, r) }, nil
		case kind == layout.KindSurface && name == "source":
			return func(c Client) error { return c.SurfaceSetSourceRect(id, r) }, nil
		case kind == layout.KindSurface:
			return func(c Client) error { return c.SurfaceSetDestRect(id, r) }, nil
		}

	case "order":
		ids := make([]uint32, 0, len(args))
		for _, a := range args {
			v, err := strconv.ParseUint(a, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("order: %w", err)
			}
			ids = append(ids, uint32(v))
		}
		switch kind {
		case layout.KindScreen:
			return func(c Client) error { return c.ScreenSetRenderOrder(id, ids) }, nil
		case layout.KindLayer:
			return func(c Client) error { return c.LayerSetRenderOrder(id, ids) }, nil
		}

	case "type":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: type default|desktop")
		}
		typ, err := layout.ParseSurfaceType(args[0])
		if err != nil {
			return nil, err
		}
		if kind == layout.KindSurface {
			return func(c Client) error { return c.SurfaceSetType(id, typ) }, nil
		}

	case "remove":
		if kind == layout.KindLayer {
			return func(c Client) error { return c.LayerRemove(id) }, nil
		}

	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return nil, fmt.Errorf("%s does not apply to a %s", name, kind)
}

func parseRect(args []string) (layout.Rect, error) {
	if len(args) != 4 {
		return layout.Rect{}, fmt.Errorf("want X Y W H")
	}
	var v [4]int
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return layout.Rect{}, err
		}
		v[i] = n
	}
	r := layout.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !r.Valid() {
		return layout.Rect{}, fmt.Errorf("negative component in %v", r)
	}
	return r, nil
}

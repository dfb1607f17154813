package hotkeys

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Client is the part of the control API layer actions use.
type Client interface {
	Layer(ctx context.Context, id uint32) (control.Layer, error)
	Screen(ctx context.Context, id uint32) (control.Screen, error)
	LayerSetVisibility(id uint32, visible bool) error
	ScreenSetRenderOrder(screenID uint32, layers []uint32) error
	Commit() error
}

var _ Client = (*control.Context)(nil)

// Actions runs configured layer actions through a control client.
type Actions struct {
	client  Client
	timeout time.Duration
}

// NewActions creates layer actions. A zero timeout means 2s per action.
func NewActions(client Client, timeout time.Duration) *Actions {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Actions{client: client, timeout: timeout}
}

// Run executes action on a layer and commits.
func (a *Actions) Run(action string, layerID uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	l, err := a.client.Layer(ctx, layerID)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	switch action {
	case config.ActionToggleLayer:
		err = a.client.LayerSetVisibility(layerID, !l.Visibility)
	case config.ActionShowLayer:
		err = a.client.LayerSetVisibility(layerID, true)
	case config.ActionHideLayer:
		err = a.client.LayerSetVisibility(layerID, false)
	case config.ActionRaiseLayer:
		err = a.raise(ctx, l)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return fmt.Errorf("%s layer %d: %w", action, layerID, err)
	}
	return a.client.Commit()
}

// raise moves a layer to the top of its screen's render order.
func (a *Actions) raise(ctx context.Context, l control.Layer) error {
	if l.Screen == layout.InvalidID {
		return fmt.Errorf("layer %d is not on a screen", l.ID)
	}
	scr, err := a.client.Screen(ctx, l.Screen)
	if err != nil {
		return err
	}
	order := slices.DeleteFunc(slices.Clone(scr.Layers), func(id uint32) bool { return id == l.ID })
	order = append(order, l.ID)
	if slices.Equal(order, scr.Layers) {
		return nil
	}
	return a.client.ScreenSetRenderOrder(scr.ID, order)
}

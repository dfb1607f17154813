// Package profile saves the layer arrangement of a running scene and applies
// it again later. Surfaces belong to running clients, so a profile only
// references them by id and skips those that are gone.
package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// Profile is a saved arrangement.
type Profile struct {
	Name    string   `yaml:"name"`
	Screens []Screen `yaml:"screens,omitempty"`
	Layers  []Layer  `yaml:"layers,omitempty"`
}

// Screen records the layer order of one screen. Connector is matched first
// on apply, then ID.
type Screen struct {
	Connector string   `yaml:"connector"`
	ID        uint32   `yaml:"id"`
	Layers    []uint32 `yaml:"layers"`
}

type Layer struct {
	ID       uint32      `yaml:"id"`
	Width    int         `yaml:"width"`
	Height   int         `yaml:"height"`
	Visible  bool        `yaml:"visible"`
	Opacity  float64     `yaml:"opacity"`
	Source   layout.Rect `yaml:"source"`
	Dest     layout.Rect `yaml:"dest"`
	Surfaces []Surface   `yaml:"surfaces,omitempty"`
}

type Surface struct {
	ID      uint32      `yaml:"id"`
	Visible bool        `yaml:"visible"`
	Opacity float64     `yaml:"opacity"`
	Source  layout.Rect `yaml:"source"`
	Dest    layout.Rect `yaml:"dest"`
}

// Client is the part of a control context profiles need.
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
	ScreenSetRenderOrder(screenID uint32, layers []uint32) error
	Commit() error
}

var _ Client = (*control.Context)(nil)

// Capture builds a profile from the current scene.
func Capture(ctx context.Context, c Client, name string) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	scene, err := c.Scene(ctx)
	if err != nil {
		return nil, err
	}

	surfaces := make(map[uint32]control.Surface, len(scene.Surfaces))
	for _, s := range scene.Surfaces {
		surfaces[s.ID] = s
	}

	p := &Profile{Name: name}
	for _, s := range scene.Screens {
		p.Screens = append(p.Screens, Screen{
			Connector: s.ConnectorName,
			ID:        s.ID,
			Layers:    slices.Clone(s.Layers),
		})
	}
	for _, l := range scene.Layers {
		entry := Layer{
			ID:      l.ID,
			Width:   l.OrigSourceWidth,
			Height:  l.OrigSourceHeight,
			Visible: l.Visibility,
			Opacity: l.Opacity,
			Source:  l.SourceRect,
			Dest:    l.DestRect,
		}
		for _, sid := range l.Surfaces {
			s, ok := surfaces[sid]
			if !ok {
				continue
			}
			entry.Surfaces = append(entry.Surfaces, Surface{
				ID:      sid,
				Visible: s.Visibility,
				Opacity: s.Opacity,
				Source:  s.SourceRect,
				Dest:    s.DestRect,
			})
		}
		p.Layers = append(p.Layers, entry)
	}
	return p, nil
}

// ApplyOptions controls Apply.
type ApplyOptions struct {
	// Replace removes layers that are not in the profile.
	Replace bool
}

// Report says what Apply did.
type Report struct {
	CreatedLayers   []uint32
	RemovedLayers   []uint32
	MissingSurfaces []uint32
	MissingScreens  []string
}

// Apply restores a profile on the running scene and commits. Layers missing
// from the scene are created; surfaces and screens that no longer exist are
// skipped and listed in the report.
func Apply(ctx context.Context, c Client, p *Profile, opts ApplyOptions) (Report, error) {
	var rep Report
	if p == nil {
		return rep, errors.New("profile is nil")
	}
	scene, err := c.Scene(ctx)
	if err != nil {
		return rep, err
	}

	haveLayer := make(map[uint32]bool, len(scene.Layers))
	for _, l := range scene.Layers {
		haveLayer[l.ID] = true
	}
	haveSurface := make(map[uint32]bool, len(scene.Surfaces))
	for _, s := range scene.Surfaces {
		haveSurface[s.ID] = true
	}

	var errs []error
	wanted := make(map[uint32]bool, len(p.Layers))
	for _, l := range p.Layers {
		wanted[l.ID] = true
		if !haveLayer[l.ID] {
			if _, err := c.LayerCreateWithDimension(ctx, l.ID, l.Width, l.Height); err != nil {
				return rep, fmt.Errorf("layer %d: %w", l.ID, err)
			}
			rep.CreatedLayers = append(rep.CreatedLayers, l.ID)
		}
		errs = append(errs,
			c.LayerSetVisibility(l.ID, l.Visible),
			c.LayerSetOpacity(l.ID, l.Opacity),
			c.LayerSetSourceRect(l.ID, l.Source),
			c.LayerSetDestRect(l.ID, l.Dest),
		)

		order := make([]uint32, 0, len(l.Surfaces))
		for _, s := range l.Surfaces {
			if !haveSurface[s.ID] {
				rep.MissingSurfaces = append(rep.MissingSurfaces, s.ID)
				continue
			}
			order = append(order, s.ID)
			errs = append(errs,
				c.SurfaceSetVisibility(s.ID, s.Visible),
				c.SurfaceSetOpacity(s.ID, s.Opacity),
				c.SurfaceSetSourceRect(s.ID, s.Source),
				c.SurfaceSetDestRect(s.ID, s.Dest),
			)
		}
		errs = append(errs, c.LayerSetRenderOrder(l.ID, order))
	}

	if opts.Replace {
		for _, l := range scene.Layers {
			if wanted[l.ID] {
				continue
			}
			errs = append(errs, c.LayerRemove(l.ID))
			rep.RemovedLayers = append(rep.RemovedLayers, l.ID)
		}
	}

	for _, s := range p.Screens {
		id, ok := matchScreen(scene.Screens, s)
		if !ok {
			rep.MissingScreens = append(rep.MissingScreens, s.Connector)
			continue
		}
		layers := slices.DeleteFunc(slices.Clone(s.Layers), func(id uint32) bool {
			return !wanted[id] && (opts.Replace || !haveLayer[id])
		})
		errs = append(errs, c.ScreenSetRenderOrder(id, layers))
	}

	if err := errors.Join(errs...); err != nil {
		return rep, err
	}
	return rep, c.Commit()
}

func matchScreen(screens []control.Screen, want Screen) (uint32, bool) {
	for _, s := range screens {
		if want.Connector != "" && s.ConnectorName == want.Connector {
			return s.ID, true
		}
	}
	for _, s := range screens {
		if s.ID == want.ID {
			return s.ID, true
		}
	}
	return 0, false
}

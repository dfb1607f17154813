package arrange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// LayerClient is the part of a control context that ArrangeLayer needs.
type LayerClient interface {
	Layer(ctx context.Context, id uint32) (control.Layer, error)
	Screen(ctx context.Context, id uint32) (control.Screen, error)
	SurfaceSetDestRect(id uint32, r layout.Rect) error
	Commit() error
}

var _ LayerClient = (*control.Context)(nil)

// ArrangeLayer tiles the surfaces of a layer over the layer's area in render
// order and commits. It returns the rectangles it assigned.
func ArrangeLayer(ctx context.Context, c LayerClient, layerID uint32, opts Options) ([]layout.Rect, error) {
	l, err := c.Layer(ctx, layerID)
	if err != nil {
		return nil, err
	}
	width, height := l.DestRect.Width, l.DestRect.Height
	if width == 0 || height == 0 {
		if l.Screen == layout.InvalidID {
			return nil, fmt.Errorf("layer %d has no destination size and is not on a screen", layerID)
		}
		s, err := c.Screen(ctx, l.Screen)
		if err != nil {
			return nil, err
		}
		width, height = s.Width, s.Height
	}

	rects, err := Positions(len(l.Surfaces), layout.Rect{Width: width, Height: height}, opts)
	if err != nil {
		return nil, err
	}
	for i, id := range l.Surfaces {
		if err := c.SurfaceSetDestRect(id, rects[i]); err != nil {
			return nil, err
		}
	}
	if err := c.Commit(); err != nil {
		return nil, err
	}
	return rects, nil
}

// PlaceConfig configures PlaceNewSurfaces.
type PlaceConfig struct {
	// LayerID is the layer to create; InvalidID picks a free id.
	LayerID uint32
	// Display selects the screen by connector name. Empty or unknown picks
	// the widest screen.
	Display string
	// Count stops after this many placements. Zero runs until ctx is done.
	Count  int
	Claims *Claims
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Placement is one surface put into the placement layer.
type Placement struct {
	SurfaceID uint32      `json:"surface_id"`
	Rect      layout.Rect `json:"rect"`
}

// PickScreen returns the screen whose connector is name, or the widest.
func PickScreen(screens []control.Screen, name string) (control.Screen, error) {
	if len(screens) == 0 {
		return control.Screen{}, errors.New("no screens")
	}
	best := screens[0]
	for _, s := range screens {
		if name != "" && s.ConnectorName == name {
			return s, nil
		}
		if s.Width > best.Width {
			best = s
		}
	}
	return best, nil
}

// PlaceNewSurfaces creates a full-screen layer and puts every surface created
// afterwards at a random spot in it that no other placement run has claimed.
// placed, if non-nil, is called for each placement. The layer id is returned
// once the run ends.
func PlaceNewSurfaces(ctx context.Context, c *control.Context, cfg PlaceConfig, placed func(Placement)) (uint32, error) {
	if cfg.Claims == nil {
		return layout.InvalidID, errors.New("placement needs a claims file")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	scene, err := c.Scene(ctx)
	if err != nil {
		return layout.InvalidID, err
	}
	screen, err := PickScreen(scene.Screens, cfg.Display)
	if err != nil {
		return layout.InvalidID, err
	}
	layerID, err := c.LayerCreateWithDimension(ctx, cfg.LayerID, screen.Width, screen.Height)
	if err != nil {
		return layout.InvalidID, err
	}
	full := layout.Rect{Width: screen.Width, Height: screen.Height}
	if err := errors.Join(
		c.LayerSetDestRect(layerID, full),
		c.LayerSetVisibility(layerID, true),
		c.ScreenAddLayer(screen.ID, layerID),
		c.Commit(),
	); err != nil {
		return layerID, err
	}
	logger.Info("placement layer ready", "layer", layerID, "screen", screen.ID, "size", full)

	p := &placeRun{
		c:       c,
		ctx:     ctx,
		layerID: layerID,
		claims:  cfg.Claims,
		placer:  &Placer{Area: full, Rand: cfg.Rand},
		log:     logger,
		seen:    make(map[uint32]bool),
		results:  make(chan Placement, 16),
		finished: make(chan struct{}),
	}
	c.SetGlobalListener(p.onGlobal)
	defer c.SetGlobalListener(nil)
	// Listener calls already queued may still run after this returns.
	defer close(p.finished)

	n := 0
	for {
		select {
		case <-ctx.Done():
			return layerID, ctx.Err()
		case pl := <-p.results:
			n++
			if placed != nil {
				placed(pl)
			}
			if cfg.Count > 0 && n >= cfg.Count {
				return layerID, nil
			}
		}
	}
}

type placeRun struct {
	c       *control.Context
	ctx     context.Context
	layerID uint32
	claims  *Claims
	placer  *Placer
	log     *slog.Logger

	mu       sync.Mutex
	seen     map[uint32]bool
	results  chan Placement
	finished chan struct{}
}

func (p *placeRun) onGlobal(kind layout.Kind, id uint32, created bool) {
	if kind != layout.KindSurface {
		return
	}
	if !created {
		p.c.RemoveSurfaceListener(id)
		return
	}
	if err := p.c.SetSurfaceListener(id, p.onSurface); err != nil {
		p.log.Debug("surface vanished before it could be watched", "surface", id, "error", err)
		return
	}
	// The configure notification may already have gone past.
	s, err := p.c.Surface(p.ctx, id)
	if err != nil {
		return
	}
	if s.OrigSourceWidth > 0 && s.OrigSourceHeight > 0 {
		p.place(id, s.OrigSourceWidth, s.OrigSourceHeight)
	}
}

func (p *placeRun) onSurface(id uint32, props layout.SurfaceProperties, mask layout.Mask) {
	if mask.Has(layout.MaskConfigured) {
		p.place(id, props.OrigSourceWidth, props.OrigSourceHeight)
	}
}

func (p *placeRun) place(id uint32, width, height int) {
	select {
	case <-p.finished:
		return
	default:
	}
	p.mu.Lock()
	if p.seen[id] {
		p.mu.Unlock()
		return
	}
	p.seen[id] = true
	p.mu.Unlock()
	p.c.RemoveSurfaceListener(id)

	r, ok, err := p.claims.Claim(func(claimed []layout.Rect) (layout.Rect, bool) {
		return p.placer.Place(width, height, claimed)
	})
	if err != nil {
		p.log.Error("failed to claim a position", "surface", id, "error", err)
		return
	}
	if !ok {
		p.log.Warn("no free position", "surface", id, "width", width, "height", height)
		return
	}

	if err := errors.Join(
		p.c.SurfaceSetDestRect(id, r),
		p.c.SurfaceSetSourceRect(id, layout.Rect{Width: width, Height: height}),
		p.c.SurfaceSetVisibility(id, true),
		p.c.LayerAddSurface(p.layerID, id),
		p.c.Commit(),
	); err != nil {
		p.log.Error("failed to place surface", "surface", id, "error", err)
		return
	}
	p.log.Info("placed surface", "surface", id, "rect", r)
	select {
	case p.results <- Placement{SurfaceID: id, Rect: r}:
	case <-p.finished:
	case <-p.ctx.Done():
	}
}

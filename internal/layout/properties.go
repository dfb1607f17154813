package layout

import (
	"fmt"
	"math"
	"slices"
)

func opacityChanged(a, b float64) bool {
	return math.Float64bits(a) != math.Float64bits(b)
}

func diffSurface(prev, next SurfaceProperties) Mask {
	var m Mask
	if prev.Visibility != next.Visibility {
		m |= MaskVisibility
	}
	if opacityChanged(prev.Opacity, next.Opacity) {
		m |= MaskOpacity
	}
	if prev.SourceRect != next.SourceRect {
		m |= MaskSourceRect
	}
	if prev.DestRect != next.DestRect {
		m |= MaskDestRect
	}
	if prev.ContentAvailable != next.ContentAvailable {
		m |= MaskContentAvailable
	}
	if prev.OrigSourceWidth != next.OrigSourceWidth || prev.OrigSourceHeight != next.OrigSourceHeight {
		m |= MaskConfigured
	}
	return m
}

func diffLayer(prev, next LayerProperties) Mask {
	var m Mask
	if prev.Visibility != next.Visibility {
		m |= MaskVisibility
	}
	if opacityChanged(prev.Opacity, next.Opacity) {
		m |= MaskOpacity
	}
	if prev.SourceRect != next.SourceRect {
		m |= MaskSourceRect
	}
	if prev.DestRect != next.DestRect {
		m |= MaskDestRect
	}
	return m
}

// writeSurface applies a control mutation to the committed properties and
// records which bits changed. A staged compositor update sees the same write.
func (s *Scene) writeSurface(id uint32, fn func(*SurfaceProperties)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return fmt.Errorf("surface %d: %w", id, ErrNotFound)
	}
	before := surf.cur
	fn(&surf.cur)
	surf.mask |= diffSurface(before, surf.cur)
	if surf.staged {
		fn(&surf.pending)
	}
	return nil
}

func (s *Scene) writeLayer(id uint32, fn func(*LayerProperties)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok {
		return fmt.Errorf("layer %d: %w", id, ErrNotFound)
	}
	before := l.cur
	fn(&l.cur)
	l.mask |= diffLayer(before, l.cur)
	if l.staged {
		fn(&l.pending)
	}
	return nil
}

// SetSurfaceVisibility shows or hides a surface.
func (s *Scene) SetSurfaceVisibility(id uint32, visible bool) error {
	return s.writeSurface(id, func(p *SurfaceProperties) { p.Visibility = visible })
}

// SetSurfaceOpacity stores the opacity as given. Values outside [0,1] are the
// caller's responsibility.
func (s *Scene) SetSurfaceOpacity(id uint32, opacity float64) error {
	return s.writeSurface(id, func(p *SurfaceProperties) { p.Opacity = opacity })
}

func (s *Scene) SetSurfaceSourceRect(id uint32, r Rect) error {
	if !r.Valid() {
		return fmt.Errorf("source rect %v: %w", r, ErrInvalidArguments)
	}
	return s.writeSurface(id, func(p *SurfaceProperties) { p.SourceRect = r })
}

func (s *Scene) SetSurfaceDestRect(id uint32, r Rect) error {
	if !r.Valid() {
		return fmt.Errorf("destination rect %v: %w", r, ErrInvalidArguments)
	}
	return s.writeSurface(id, func(p *SurfaceProperties) { p.DestRect = r })
}

// SetSurfaceType changes the surface type. The type has no mask bit, so it
// never triggers a notification on its own.
func (s *Scene) SetSurfaceType(id uint32, t SurfaceType) error {
	if t != SurfaceTypeDefault && t != SurfaceTypeDesktop {
		return fmt.Errorf("surface type %v: %w", t, ErrInvalidArguments)
	}
	return s.writeSurface(id, func(p *SurfaceProperties) { p.Type = t })
}

func (s *Scene) SetLayerVisibility(id uint32, visible bool) error {
	return s.writeLayer(id, func(p *LayerProperties) { p.Visibility = visible })
}

func (s *Scene) SetLayerOpacity(id uint32, opacity float64) error {
	return s.writeLayer(id, func(p *LayerProperties) { p.Opacity = opacity })
}

func (s *Scene) SetLayerSourceRect(id uint32, r Rect) error {
	if !r.Valid() {
		return fmt.Errorf("source rect %v: %w", r, ErrInvalidArguments)
	}
	return s.writeLayer(id, func(p *LayerProperties) { p.SourceRect = r })
}

func (s *Scene) SetLayerDestRect(id uint32, r Rect) error {
	if !r.Valid() {
		return fmt.Errorf("destination rect %v: %w", r, ErrInvalidArguments)
	}
	return s.writeLayer(id, func(p *LayerProperties) { p.DestRect = r })
}

// StageSurface buffers a compositor-driven change. Nothing is visible until
// the next Commit.
func (s *Scene) StageSurface(id uint32, fn func(*SurfaceProperties)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return fmt.Errorf("surface %d: %w", id, ErrNotFound)
	}
	if !surf.staged {
		surf.pending = surf.cur
		surf.staged = true
	}
	fn(&surf.pending)
	return nil
}

// StageLayer buffers a compositor-driven layer change.
func (s *Scene) StageLayer(id uint32, fn func(*LayerProperties)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok {
		return fmt.Errorf("layer %d: %w", id, ErrNotFound)
	}
	if !l.staged {
		l.pending = l.cur
		l.staged = true
	}
	fn(&l.pending)
	return nil
}

// ConfigureSurface stages a new buffer size reported by the client.
func (s *Scene) ConfigureSurface(id uint32, width, height int) error {
	return s.StageSurface(id, func(p *SurfaceProperties) {
		p.OrigSourceWidth = width
		p.OrigSourceHeight = height
	})
}

// SetSurfaceContent stages whether the surface has content to show.
func (s *Scene) SetSurfaceContent(id uint32, available bool) error {
	return s.StageSurface(id, func(p *SurfaceProperties) { p.ContentAvailable = available })
}

// FrameSurface counts a presented frame. The counter has no mask bit.
func (s *Scene) FrameSurface(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return fmt.Errorf("surface %d: %w", id, ErrNotFound)
	}
	surf.cur.FrameCounter++
	if surf.staged {
		surf.pending.FrameCounter = surf.cur.FrameCounter
	}
	return nil
}

// Commit runs one commit pass. Staged values become current, and every object
// with changed properties produces exactly one notification carrying the full
// snapshot and the union of its changed bits. Render-order and screen changes
// made since the last pass are reported after property changes. Commit
// returns the number of objects whose properties changed.
func (s *Scene) Commit() int {
	var changed int
	s.update(func(b *batch) error {
		s.commitCount++
		watchers := s.watcherList()

		s.surfaces.each(func(id uint32, surf *surface) {
			mask := surf.mask
			if surf.staged {
				mask |= diffSurface(surf.cur, surf.pending)
				surf.cur = surf.pending
				surf.staged = false
			}
			surf.mask = 0
			mask &= SurfaceMask
			if mask == 0 {
				return
			}
			changed++
			props := surf.cur
			if fn := surf.listener; fn != nil {
				b.add(func() { fn(id, props, mask) })
			}
			for _, w := range watchers {
				b.add(func() { w.SurfaceChanged(id, props, mask) })
			}
		})

		s.layers.each(func(id uint32, l *layer) {
			mask := l.mask
			if l.staged {
				mask |= diffLayer(l.cur, l.pending)
				l.cur = l.pending
				l.staged = false
			}
			l.mask = 0
			mask &= LayerMask
			if mask == 0 {
				return
			}
			changed++
			props := l.cur
			if fn := l.listener; fn != nil {
				b.add(func() { fn(id, props, mask) })
			}
			for _, w := range watchers {
				b.add(func() { w.LayerChanged(id, props, mask) })
			}
		})

		s.screens.each(func(id uint32, scr *screen) {
			if !scr.propsDirty {
				return
			}
			scr.propsDirty = false
			props := scr.props
			for _, w := range watchers {
				b.add(func() { w.ScreenChanged(id, props) })
			}
		})

		s.layers.each(func(id uint32, l *layer) {
			if !l.orderDirty {
				return
			}
			l.orderDirty = false
			order := slices.Clone(l.order)
			for _, w := range watchers {
				b.add(func() { w.RenderOrderChanged(KindLayer, id, order) })
			}
		})
		s.screens.each(func(id uint32, scr *screen) {
			if !scr.orderDirty {
				return
			}
			scr.orderDirty = false
			order := slices.Clone(scr.order)
			for _, w := range watchers {
				b.add(func() { w.RenderOrderChanged(KindScreen, id, order) })
			}
		})
		return nil
	})
	return changed
}

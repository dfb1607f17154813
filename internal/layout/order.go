package layout

import (
	"fmt"
	"slices"
)

func removeID(ids []uint32, id uint32) []uint32 {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

func hasDuplicates(ids []uint32) bool {
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// SetLayerRenderOrder replaces the surface list of a layer. Every surface is
// validated before anything changes. Surfaces that belonged to another layer
// are detached from it.
func (s *Scene) SetLayerRenderOrder(layerID uint32, surfaceIDs []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(layerID)
	if !ok {
		return fmt.Errorf("layer %d: %w", layerID, ErrNotFound)
	}
	if hasDuplicates(surfaceIDs) {
		return fmt.Errorf("layer %d render order: %w: duplicate surface", layerID, ErrInvalidArguments)
	}
	for _, id := range surfaceIDs {
		if !s.surfaces.has(id) {
			return fmt.Errorf("surface %d: %w", id, ErrNotFound)
		}
	}

	for _, old := range l.order {
		if surf, ok := s.surfaces.get(old); ok {
			surf.layer = InvalidID
		}
	}
	for _, id := range surfaceIDs {
		surf, _ := s.surfaces.get(id)
		s.detachSurface(surf, id, layerID)
		surf.layer = layerID
	}
	l.order = slices.Clone(surfaceIDs)
	l.orderDirty = true
	return nil
}

// SetScreenRenderOrder replaces the layer list of a screen.
func (s *Scene) SetScreenRenderOrder(screenID uint32, layerIDs []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(screenID)
	if !ok {
		return fmt.Errorf("screen %d: %w", screenID, ErrNotFound)
	}
	if hasDuplicates(layerIDs) {
		return fmt.Errorf("screen %d render order: %w: duplicate layer", screenID, ErrInvalidArguments)
	}
	for _, id := range layerIDs {
		if !s.layers.has(id) {
			return fmt.Errorf("layer %d: %w", id, ErrNotFound)
		}
	}

	for _, old := range scr.order {
		if l, ok := s.layers.get(old); ok {
			l.screen = InvalidID
		}
	}
	for _, id := range layerIDs {
		l, _ := s.layers.get(id)
		s.detachLayer(l, id, screenID)
		l.screen = screenID
	}
	scr.order = slices.Clone(layerIDs)
	scr.orderDirty = true
	return nil
}

// AddSurfaceToLayer appends a surface to a layer's render order. Adding a
// surface that is already there does nothing.
func (s *Scene) AddSurfaceToLayer(layerID, surfaceID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(layerID)
	if !ok {
		return fmt.Errorf("layer %d: %w", layerID, ErrNotFound)
	}
	surf, ok := s.surfaces.get(surfaceID)
	if !ok {
		return fmt.Errorf("surface %d: %w", surfaceID, ErrNotFound)
	}
	if surf.layer == layerID {
		return nil
	}
	s.detachSurface(surf, surfaceID, layerID)
	surf.layer = layerID
	l.order = append(l.order, surfaceID)
	l.orderDirty = true
	return nil
}

// RemoveSurfaceFromLayer drops a surface from a layer's render order. Removing
// a surface that is not there does nothing.
func (s *Scene) RemoveSurfaceFromLayer(layerID, surfaceID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(layerID)
	if !ok {
		return fmt.Errorf("layer %d: %w", layerID, ErrNotFound)
	}
	if !slices.Contains(l.order, surfaceID) {
		return nil
	}
	l.order = removeID(l.order, surfaceID)
	l.orderDirty = true
	if surf, ok := s.surfaces.get(surfaceID); ok {
		surf.layer = InvalidID
	}
	return nil
}

// AddLayerToScreen appends a layer to a screen's render order.
func (s *Scene) AddLayerToScreen(screenID, layerID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(screenID)
	if !ok {
		return fmt.Errorf("screen %d: %w", screenID, ErrNotFound)
	}
	l, ok := s.layers.get(layerID)
	if !ok {
		return fmt.Errorf("layer %d: %w", layerID, ErrNotFound)
	}
	if l.screen == screenID {
		return nil
	}
	s.detachLayer(l, layerID, screenID)
	l.screen = screenID
	scr.order = append(scr.order, layerID)
	scr.orderDirty = true
	return nil
}

// RemoveLayerFromScreen drops a layer from a screen's render order.
func (s *Scene) RemoveLayerFromScreen(screenID, layerID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(screenID)
	if !ok {
		return fmt.Errorf("screen %d: %w", screenID, ErrNotFound)
	}
	if !slices.Contains(scr.order, layerID) {
		return nil
	}
	scr.order = removeID(scr.order, layerID)
	scr.orderDirty = true
	if l, ok := s.layers.get(layerID); ok {
		l.screen = InvalidID
	}
	return nil
}

// LayerRenderOrder returns the surfaces of a layer, bottom first.
func (s *Scene) LayerRenderOrder(layerID uint32) ([]uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(layerID)
	if !ok {
		return nil, false
	}
	return slices.Clone(l.order), true
}

// ScreenRenderOrder returns the layers of a screen, bottom first.
func (s *Scene) ScreenRenderOrder(screenID uint32) ([]uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scr, ok := s.screens.get(screenID)
	if !ok {
		return nil, false
	}
	return slices.Clone(scr.order), true
}

// detachSurface removes a surface from its current layer unless that layer is
// keep.
func (s *Scene) detachSurface(surf *surface, id, keep uint32) {
	if surf.layer == InvalidID || surf.layer == keep {
		return
	}
	if prev, ok := s.layers.get(surf.layer); ok {
		prev.order = removeID(prev.order, id)
		prev.orderDirty = true
	}
	surf.layer = InvalidID
}

func (s *Scene) detachLayer(l *layer, id, keep uint32) {
	if l.screen == InvalidID || l.screen == keep {
		return
	}
	if prev, ok := s.screens.get(l.screen); ok {
		prev.order = removeID(prev.order, id)
		prev.orderDirty = true
	}
	l.screen = InvalidID
}

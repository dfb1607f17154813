package layout

import "fmt"

// SetSurfaceListener installs the listener for one surface, replacing any
// previous one. A nil listener unregisters.
func (s *Scene) SetSurfaceListener(id uint32, fn SurfaceListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return fmt.Errorf("surface %d: %w", id, ErrInvalidArguments)
	}
	surf.listener = fn
	return nil
}

// RemoveSurfaceListener unregisters the listener of a surface.
func (s *Scene) RemoveSurfaceListener(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces.get(id)
	if !ok {
		return fmt.Errorf("surface %d: %w", id, ErrNotFound)
	}
	if surf.listener == nil {
		return fmt.Errorf("surface %d has no listener: %w", id, ErrInvalidArguments)
	}
	surf.listener = nil
	return nil
}

// SetLayerListener installs the listener for one layer, replacing any
// previous one. A nil listener unregisters.
func (s *Scene) SetLayerListener(id uint32, fn LayerListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok {
		return fmt.Errorf("layer %d: %w", id, ErrInvalidArguments)
	}
	l.listener = fn
	return nil
}

// RemoveLayerListener unregisters the listener of a layer.
func (s *Scene) RemoveLayerListener(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.get(id)
	if !ok {
		return fmt.Errorf("layer %d: %w", id, ErrNotFound)
	}
	if l.listener == nil {
		return fmt.Errorf("layer %d has no listener: %w", id, ErrInvalidArguments)
	}
	l.listener = nil
	return nil
}

package layout

import "slices"

// registry is an id-keyed collection that remembers insertion order.
type registry[T any] struct {
	items map[uint32]T
	order []uint32
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[uint32]T)}
}

func (r *registry[T]) has(id uint32) bool {
	_, ok := r.items[id]
	return ok
}

func (r *registry[T]) get(id uint32) (T, bool) {
	v, ok := r.items[id]
	return v, ok
}

func (r *registry[T]) add(id uint32, v T) bool {
	if id == InvalidID || r.has(id) {
		return false
	}
	r.items[id] = v
	r.order = append(r.order, id)
	return true
}

func (r *registry[T]) remove(id uint32) (T, bool) {
	v, ok := r.items[id]
	if !ok {
		return v, false
	}
	delete(r.items, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return v, true
}

func (r *registry[T]) ids() []uint32 {
	return slices.Clone(r.order)
}

func (r *registry[T]) len() int {
	return len(r.order)
}

// each visits objects in insertion order.
func (r *registry[T]) each(fn func(id uint32, v T)) {
	for _, id := range r.order {
		fn(id, r.items[id])
	}
}

// nextFree returns the first unused id at or above base.
func (r *registry[T]) nextFree(base uint32) (uint32, bool) {
	for id := base; id != InvalidID; id++ {
		if !r.has(id) {
			return id, true
		}
	}
	return InvalidID, false
}

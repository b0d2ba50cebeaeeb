package ecs

import (
	"maps"
	"slices"
)

// Removable is implemented by every component store so the World can strip
// a destroyed entity from all of them.
type Removable interface {
	Remove(id EntityID)
}

// Store is a typed component store keyed by entity. Iteration visits
// entities in ascending ID order so simulation ticks are reproducible.
type Store[T any] struct {
	data map[EntityID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{data: make(map[EntityID]*T, 64)}
}

func (s *Store[T]) Set(id EntityID, c *T) { s.data[id] = c }

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) { delete(s.data, id) }

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int { return len(s.data) }

func (s *Store[T]) ids() []EntityID {
	return slices.Sorted(maps.Keys(s.data))
}

// Each calls fn for every stored component. fn may remove the current entity.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for _, id := range s.ids() {
		if c, ok := s.data[id]; ok {
			fn(id, c)
		}
	}
}

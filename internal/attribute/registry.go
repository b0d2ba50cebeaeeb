package attribute

import "github.com/l1jgo/skillsys/internal/core/ecs"

// Registry attaches attribute sets to ECS entities and hands out weak
// sources keyed by generational entity ID.
type Registry struct {
	world *ecs.World
	sets  *ecs.Store[Set]
}

func NewRegistry(w *ecs.World) *Registry {
	r := &Registry{world: w, sets: ecs.NewStore[Set]()}
	w.Register(r.sets)
	return r
}

func (r *Registry) Attach(id ecs.EntityID, s *Set) { r.sets.Set(id, s) }

func (r *Registry) Get(id ecs.EntityID) (*Set, bool) {
	if !r.world.Alive(id) {
		return nil, false
	}
	return r.sets.Get(id)
}

// Each visits every live attribute set in entity order.
func (r *Registry) Each(fn func(ecs.EntityID, *Set)) { r.sets.Each(fn) }

// Source returns a weak handle on id's attributes.
func (r *Registry) Source(id ecs.EntityID) Source {
	return entitySource{reg: r, id: id}
}

type entitySource struct {
	reg *Registry
	id  ecs.EntityID
}

func (s entitySource) Value(attr Attribute) (float64, bool) {
	set, ok := s.reg.Get(s.id)
	if !ok {
		return 0, false
	}
	return set.Value(attr), true
}

func (s entitySource) Watch(attr Attribute, fn func(Attribute)) func() {
	set, ok := s.reg.Get(s.id)
	if !ok {
		return func() {}
	}
	id := s.id
	return set.OnDirty(attr, func(a Attribute) {
		if s.reg.world.Alive(id) {
			fn(a)
		}
	})
}

package world

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/component"
	"github.com/l1jgo/skillsys/internal/core/ecs"
	"github.com/l1jgo/skillsys/internal/core/event"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/tags"
)

// ContainerConfig carries the effect container tuning shared by every actor.
type ContainerConfig struct {
	TimeEpsilon    float64
	MaxFlushPasses int
}

// State tracks every actor in the simulation: its entity, attribute set and
// effect container, indexed by name for scenarios.
// Single-goroutine access only (simulation loop).
type State struct {
	ECS        *ecs.World
	Attributes *attribute.Registry
	Containers *ecs.Store[effect.Container]
	Actors     *ecs.Store[component.Actor]
	Bus        *event.Bus

	byName map[string]ecs.EntityID

	rng *rand.Rand
	cfg ContainerConfig
	log *zap.Logger
}

// NewState creates an empty simulation state. Destroying an entity tears
// down its effect container before its components are removed.
func NewState(bus *event.Bus, rng *rand.Rand, cfg ContainerConfig, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	w := ecs.NewWorld()
	s := &State{
		ECS:        w,
		Attributes: attribute.NewRegistry(w),
		Containers: ecs.NewStore[effect.Container](),
		Actors:     ecs.NewStore[component.Actor](),
		Bus:        bus,
		byName:     make(map[string]ecs.EntityID),
		rng:        rng,
		cfg:        cfg,
		log:        log,
	}
	w.Register(s.Containers)
	w.Register(s.Actors)
	w.OnDestroy(s.onDestroy)
	return s
}

// Spawn creates a named actor with the given base attributes and tags.
func (s *State) Spawn(name string, base map[attribute.Attribute]float64, baseTags tags.Set) (ecs.EntityID, error) {
	if _, dup := s.byName[name]; dup {
		return 0, fmt.Errorf("actor %q already exists", name)
	}
	id := s.ECS.CreateEntity()
	set := attribute.NewSet(base)
	s.Attributes.Attach(id, set)
	c := effect.NewContainer(set, s.log.With(zap.String("actor", name)), effect.Options{
		Owner:          id,
		Bus:            s.Bus,
		Rand:           s.rng,
		BaseTags:       baseTags,
		TimeEpsilon:    s.cfg.TimeEpsilon,
		MaxFlushPasses: s.cfg.MaxFlushPasses,
	})
	s.Containers.Set(id, c)
	s.Actors.Set(id, &component.Actor{Name: name, BaseTags: baseTags})
	s.byName[name] = id

	s.log.Debug("actor spawned", zap.String("actor", name), zap.Stringer("entity", id))
	return id, nil
}

// Lookup returns the live entity of a named actor.
func (s *State) Lookup(name string) (ecs.EntityID, bool) {
	id, ok := s.byName[name]
	if !ok || !s.ECS.Alive(id) {
		return 0, false
	}
	return id, true
}

// Name returns the actor name of id, or its entity string when unnamed.
func (s *State) Name(id ecs.EntityID) string {
	if a, ok := s.Actors.Get(id); ok {
		return a.Name
	}
	return id.String()
}

// Container returns the effect container of a live entity.
func (s *State) Container(id ecs.EntityID) (*effect.Container, bool) {
	if !s.ECS.Alive(id) {
		return nil, false
	}
	return s.Containers.Get(id)
}

// AttributeSet returns the attribute set of a live entity.
func (s *State) AttributeSet(id ecs.EntityID) (*attribute.Set, bool) {
	return s.Attributes.Get(id)
}

// Instigator describes id as the creator of a spec: a weak attribute source
// and its current tags.
func (s *State) Instigator(id ecs.EntityID) effect.InstigatorContext {
	ctx := effect.InstigatorContext{Instigator: id, Source: s.Attributes.Source(id)}
	if c, ok := s.Container(id); ok {
		ctx.Tags = c.OwnedTags()
	}
	return ctx
}

// Destroy queues id for removal at the end of the tick.
func (s *State) Destroy(id ecs.EntityID) {
	s.ECS.MarkForDestruction(id)
}

// ActorCount returns the number of live actors.
func (s *State) ActorCount() int {
	return s.Containers.Len()
}

// EffectCount returns the number of active effects across all actors.
func (s *State) EffectCount() int {
	n := 0
	ecs.Each2(s.Actors, s.Containers, func(_ ecs.EntityID, _ *component.Actor, c *effect.Container) {
		n += c.NumEffects()
	})
	return n
}

// AllActors calls fn for every live actor in name order.
func (s *State) AllActors(fn func(name string, id ecs.EntityID, c *effect.Container, set *attribute.Set)) {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		id := s.byName[n]
		c, ok := s.Container(id)
		if !ok {
			continue
		}
		set, _ := s.Attributes.Get(id)
		fn(n, id, c, set)
	}
}

func (s *State) onDestroy(id ecs.EntityID) {
	if c, ok := s.Containers.Get(id); ok {
		c.PreDestroy()
	}
	if a, ok := s.Actors.Get(id); ok {
		delete(s.byName, a.Name)
		s.log.Debug("actor destroyed", zap.String("actor", a.Name), zap.Stringer("entity", id))
	}
}

package attribute

import (
	"maps"
	"slices"
)

// Attribute names a numeric property of an entity, e.g. "health".
type Attribute string

// Store is the target-side attribute storage an effect container writes to.
type Store interface {
	// Base returns the unmodified value of attr.
	Base(attr Attribute) float64
	// SetBase replaces the unmodified value of attr.
	SetBase(attr Attribute, value float64)
	// SetFinal publishes the aggregated value of attr.
	SetFinal(attr Attribute, value float64)
	// OnDirty registers fn to run whenever the value of attr changes.
	OnDirty(attr Attribute, fn func(Attribute)) (cancel func())
	// OnBaseChange registers fn to run whenever the base of attr changes,
	// even while a final value shadows it.
	OnBaseChange(attr Attribute, fn func(Attribute)) (cancel func())
}

// Source is a weak read handle on another entity's attributes. Once the
// entity is gone Value reports ok == false.
type Source interface {
	Value(attr Attribute) (v float64, ok bool)
	Watch(attr Attribute, fn func(Attribute)) (cancel func())
}

type hook struct {
	id int
	fn func(Attribute)
}

// Set is the in-memory attribute storage of one entity.
type Set struct {
	base      map[Attribute]float64
	final     map[Attribute]float64
	hooks     map[Attribute][]hook
	baseHooks map[Attribute][]hook
	nextID    int
}

func NewSet(base map[Attribute]float64) *Set {
	s := &Set{
		base:      make(map[Attribute]float64, len(base)),
		final:     make(map[Attribute]float64),
		hooks:     make(map[Attribute][]hook),
		baseHooks: make(map[Attribute][]hook),
	}
	maps.Copy(s.base, base)
	return s
}

func (s *Set) Base(attr Attribute) float64 { return s.base[attr] }

// Value returns the published final value, or the base when none was set.
func (s *Set) Value(attr Attribute) float64 {
	if v, ok := s.final[attr]; ok {
		return v
	}
	return s.base[attr]
}

// SetBase replaces the base value. Base watchers fire if the base moved,
// dirty watchers if the visible value moved.
func (s *Set) SetBase(attr Attribute, v float64) {
	before := s.Value(attr)
	old := s.base[attr]
	s.base[attr] = v
	if old != v {
		fire(s.baseHooks, attr)
	}
	if s.Value(attr) != before {
		fire(s.hooks, attr)
	}
}

func (s *Set) SetFinal(attr Attribute, v float64) {
	before, had := s.final[attr]
	s.final[attr] = v
	if !had && s.base[attr] == v {
		return
	}
	if had && before == v {
		return
	}
	fire(s.hooks, attr)
}

func (s *Set) OnDirty(attr Attribute, fn func(Attribute)) func() {
	return s.register(s.hooks, attr, fn)
}

func (s *Set) OnBaseChange(attr Attribute, fn func(Attribute)) func() {
	return s.register(s.baseHooks, attr, fn)
}

func (s *Set) register(m map[Attribute][]hook, attr Attribute, fn func(Attribute)) func() {
	s.nextID++
	id := s.nextID
	m[attr] = append(m[attr], hook{id: id, fn: fn})
	return func() {
		m[attr] = slices.DeleteFunc(m[attr], func(h hook) bool { return h.id == id })
	}
}

func fire(m map[Attribute][]hook, attr Attribute) {
	for _, h := range slices.Clone(m[attr]) {
		h.fn(attr)
	}
}

// Attributes lists every attribute with a base or final value, sorted.
func (s *Set) Attributes() []Attribute {
	seen := maps.Clone(s.base)
	for a := range s.final {
		seen[a] = 0
	}
	return slices.Sorted(maps.Keys(seen))
}

// Watchers returns how many hooks are registered on attr.
func (s *Set) Watchers(attr Attribute) int { return len(s.hooks[attr]) + len(s.baseHooks[attr]) }

package effect

import (
	"fmt"
	"maps"
	"math/rand"
	"slices"

	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/core/ecs"
	"github.com/l1jgo/skillsys/internal/core/event"
	"github.com/l1jgo/skillsys/internal/tags"
)

const (
	// DefaultTimeEpsilon absorbs float drift when comparing world times.
	DefaultTimeEpsilon = 1e-6
	// DefaultMaxFlushPasses bounds how often one flush may revisit attributes
	// that keep invalidating each other through dynamic levels.
	DefaultMaxFlushPasses = 8
)

// Options configures a Container. Zero fields take defaults.
type Options struct {
	Owner          ecs.EntityID
	Bus            *event.Bus
	Rand           *rand.Rand
	BaseTags       tags.Set
	TimeEpsilon    float64
	MaxFlushPasses int
}

// Container owns the active effects and per-attribute aggregators of one
// target entity, and pushes aggregated values back into its attribute store.
type Container struct {
	store     attribute.Store
	owner     ecs.EntityID
	bus       *event.Bus
	rng       *rand.Rand
	log       *zap.Logger
	eps       float64
	maxPasses int
	baseTags  tags.Set

	effects    []*ActiveEffect
	byHandle   map[Handle]*ActiveEffect
	attrAggs   map[attribute.Attribute]AggregatorRef
	unwatch    map[attribute.Attribute]func()
	pending    map[attribute.Attribute]struct{}
	lastHandle Handle
	worldTime  float64
	gameTime   int64
	destroyed  bool
}

func NewContainer(store attribute.Store, log *zap.Logger, opts Options) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TimeEpsilon <= 0 {
		opts.TimeEpsilon = DefaultTimeEpsilon
	}
	if opts.MaxFlushPasses <= 0 {
		opts.MaxFlushPasses = DefaultMaxFlushPasses
	}
	return &Container{
		store:     store,
		owner:     opts.Owner,
		bus:       opts.Bus,
		rng:       opts.Rand,
		log:       log.With(zap.Stringer("owner", opts.Owner)),
		eps:       opts.TimeEpsilon,
		maxPasses: opts.MaxFlushPasses,
		baseTags:  opts.BaseTags,
		byHandle:  make(map[Handle]*ActiveEffect),
		attrAggs:  make(map[attribute.Attribute]AggregatorRef),
		unwatch:   make(map[attribute.Attribute]func()),
		pending:   make(map[attribute.Attribute]struct{}),
	}
}

func (c *Container) Owner() ecs.EntityID    { return c.owner }
func (c *Container) WorldTime() float64     { return c.worldTime }
func (c *Container) GameTime() int64        { return c.gameTime }
func (c *Container) NumEffects() int        { return len(c.effects) }
func (c *Container) SetBaseTags(t tags.Set) { c.baseTags = t }

// ApplySpec admits spec onto the owner. The caller keeps ownership of spec;
// the container works on its own copy. Instant specs are executed directly
// and return InvalidHandle with a nil error.
func (c *Container) ApplySpec(spec *EffectSpec, q Qualifier) (Handle, error) {
	def := spec.Def
	if c.destroyed {
		return InvalidHandle, fmt.Errorf("apply %s: %w", def.Name, ErrContainerDestroyed)
	}
	if !spec.Instigator.Tags.HasAll(def.ApplicationRequiredInstigatorTags) ||
		!c.OwnedTags().HasAll(def.ApplicationRequiredTargetTags) {
		c.log.Debug("effect refused by tag requirements", zap.String("effect", def.Name))
		return InvalidHandle, fmt.Errorf("apply %s: %w", def.Name, ErrTagRequirementNotSatisfied)
	}
	if chance := spec.ChanceToApply(); chance < 1 && c.roll() >= chance {
		return InvalidHandle, fmt.Errorf("apply %s: %w", def.Name, ErrApplicationChanceFailed)
	}

	own := spec.Clone()
	own.MakeUnique()
	c.ApplyActiveEffectsTo(own, q.WithType(TargetIncoming))
	if !def.ClearTags.IsEmpty() {
		c.removeByTags(def.ClearTags)
	}

	h := InvalidHandle
	if own.IsInstant() {
		n := c.ExecuteActiveEffectsFrom(own, NewQualifier())
		c.log.Debug("instant effect executed",
			zap.String("effect", def.Name),
			zap.Stringer("spec", own.ID),
			zap.Int("modifiers", n))
		c.emitExecuted(InvalidHandle, def)
	} else {
		h = c.CreateNewActiveGameplayEffect(own)
	}

	for _, linked := range own.TargetEffectSpecs {
		if _, err := c.ApplySpec(linked, q); err != nil {
			c.log.Debug("linked effect not applied",
				zap.String("effect", def.Name),
				zap.String("linked", linked.Def.Name),
				zap.Error(err))
		}
	}
	if !h.IsValid() {
		own.Release()
	}
	c.Flush()
	return h, nil
}

// PrepareOutgoing snapshots the owner's outgoing modifiers into a spec the
// owner is about to send.
func (c *Container) PrepareOutgoing(spec *EffectSpec) int {
	return c.ApplyActiveEffectsTo(spec, NewQualifier().WithType(TargetOutgoing))
}

// ApplyActiveEffectsTo places the modifiers of every contributing active
// effect into spec, in the context q names.
func (c *Container) ApplyActiveEffectsTo(spec *EffectSpec, q Qualifier) int {
	n := 0
	for _, e := range c.effects {
		if e.contributing {
			n += spec.ApplyModifiersFrom(e.Spec, q)
		}
	}
	return n
}

// ExecuteActiveEffectsFrom bakes spec's attribute modifiers into the
// owner's attribute aggregators.
func (c *Container) ExecuteActiveEffectsFrom(spec *EffectSpec, q Qualifier) int {
	q = q.WithType(TargetAttribute)
	n := 0
	for i := range spec.Modifiers {
		m := &spec.Modifiers[i]
		if m.Info.Facet != FacetMagnitude || !m.CanModifyInContext(q) {
			continue
		}
		a := c.attributeAggregator(m.Info.Attribute)
		a.ExecuteMod(m.Info.Op, m.Evaluate())
		c.store.SetBase(m.Info.Attribute, a.Base().Magnitude.At(a.Level()))
		n++
	}
	return n
}

// CreateNewActiveGameplayEffect admits an already unique spec and wires it.
func (c *Container) CreateNewActiveGameplayEffect(spec *EffectSpec) Handle {
	c.lastHandle++
	h := c.lastHandle
	spec.setHandle(h)

	e := newActiveEffect(h, spec, c.gameTime, c.worldTime)
	c.effects = append(c.effects, e)
	c.byHandle[h] = e
	c.ApplySpecToActiveEffectsAndAttributes(spec, NewQualifier())
	if err := e.fire(evStart); err != nil {
		c.log.Warn("effect lifecycle", zap.Stringer("handle", h), zap.Error(err))
	}

	c.log.Debug("effect applied",
		zap.Stringer("handle", h),
		zap.String("effect", spec.Def.Name),
		zap.Stringer("spec", spec.ID),
		zap.Float64("duration", spec.Duration()),
		zap.Float64("period", spec.Period()))
	if c.bus != nil {
		event.Emit(c.bus, event.EffectApplied{Target: c.owner, Handle: int64(h), Effect: spec.Def.Name})
	}
	if spec.StackingPolicy != StackUnlimited {
		c.RecalculateStacking()
	}
	return h
}

// ApplySpecToActiveEffectsAndAttributes lets contributing Active modifiers
// of other effects reach spec, then wires spec itself. Stacked specs are
// wired by RecalculateStacking instead.
func (c *Container) ApplySpecToActiveEffectsAndAttributes(spec *EffectSpec, q Qualifier) {
	e, ok := c.byHandle[spec.handle()]
	if !ok {
		return
	}
	active := q.WithType(TargetActive)
	for _, o := range c.effects {
		if o != e && o.contributing {
			spec.ApplyModifiersFrom(o.Spec, active)
		}
	}
	if spec.StackingPolicy == StackUnlimited {
		c.attach(e)
	}
}

// attach makes e contribute: its attribute modifiers are wired into the
// attribute aggregators (periodic effects execute instead) and its Active
// modifiers reach the other effects.
func (c *Container) attach(e *ActiveEffect) {
	e.contributing = true
	if !e.Spec.IsPeriodic() {
		for i := range e.Spec.Modifiers {
			m := &e.Spec.Modifiers[i]
			if m.Info.Type != TargetAttribute || m.Info.Facet != FacetMagnitude {
				continue
			}
			c.attributeAggregator(m.Info.Attribute).ApplyMod(m.Info.Op, m.Aggregator, m.attributeSemantics())
		}
	}
	active := NewQualifier().WithType(TargetActive)
	for _, o := range c.effects {
		if o != e {
			o.Spec.ApplyModifiersFrom(e.Spec, active)
		}
	}
}

// detach strips every entry e placed anywhere in the container.
func (c *Container) detach(e *ActiveEffect) {
	e.contributing = false
	for _, r := range c.attrAggs {
		if a := r.Get(); a != nil {
			a.RemoveModsFrom(e.Handle)
		}
	}
	for _, o := range c.effects {
		if o != e {
			o.Spec.removeModsFrom(e.Handle)
		}
	}
}

func (c *Container) attributeAggregator(attr attribute.Attribute) *Aggregator {
	if a := c.attrAggs[attr].Get(); a != nil {
		return a
	}
	a := NewAggregator(ModifierData{Magnitude: Constant(c.store.Base(attr))}, nil)
	a.SetOnDirty(func(*Aggregator) { c.pending[attr] = struct{}{} })
	c.attrAggs[attr] = NewAggregatorRef(a)
	c.unwatch[attr] = c.store.OnBaseChange(attr, c.syncBase)
	return a
}

// syncBase reseeds the aggregator of attr after its stored base moved.
func (c *Container) syncBase(attr attribute.Attribute) {
	a := c.attrAggs[attr].Get()
	if a == nil {
		return
	}
	v := c.store.Base(attr)
	base := a.Base()
	if base.Magnitude.At(a.Level()) == v {
		return
	}
	base.Magnitude = Constant(v)
	a.SetBase(base)
}

// RemoveEffect removes the active effect h. It reports false when h is unknown.
func (c *Container) RemoveEffect(h Handle) bool {
	return c.removeActiveEffect(h, false)
}

func (c *Container) removeActiveEffect(h Handle, expired bool) bool {
	e, ok := c.byHandle[h]
	if !ok {
		return false
	}
	c.detach(e)
	delete(c.byHandle, h)
	c.effects = slices.DeleteFunc(c.effects, func(x *ActiveEffect) bool { return x == e })
	if err := e.fire(evRemove); err != nil {
		c.log.Warn("effect lifecycle", zap.Stringer("handle", h), zap.Error(err))
	}
	e.Spec.Release()

	c.log.Debug("effect removed",
		zap.Stringer("handle", h),
		zap.String("effect", e.Spec.Def.Name),
		zap.Bool("expired", expired))
	if c.bus != nil {
		event.Emit(c.bus, event.EffectRemoved{Target: c.owner, Handle: int64(h), Effect: e.Spec.Def.Name, Expired: expired})
	}
	if e.Spec.StackingPolicy != StackUnlimited {
		c.RecalculateStacking()
	}
	c.Flush()
	return true
}

func (c *Container) removeByTags(t tags.Set) {
	for _, e := range slices.Clone(c.effects) {
		if e.Spec.Def.EffectTags.HasAny(t) {
			c.removeActiveEffect(e.Handle, false)
		}
	}
}

// Tick advances the container clock by dt seconds: periodic effects
// execute, expired effects are removed, stacking is re-resolved and the
// attribute store is updated.
func (c *Container) Tick(dt float64) {
	if c.destroyed {
		return
	}
	c.TickActiveEffects(dt)
	c.RecalculateStacking()
	c.Flush()
}

// TickActiveEffects advances time and runs periodic executions and expiry.
// Within one tick executions run before expiry, so an execution due at the
// expiry instant still happens.
func (c *Container) TickActiveEffects(dt float64) {
	c.gameTime++
	c.worldTime += dt
	now := c.worldTime + c.eps

	for _, e := range slices.Clone(c.effects) {
		if e.IsRemoved() || !e.Spec.IsPeriodic() {
			continue
		}
		period := e.Spec.Period()
		end, finite := e.ExpiresAt()
		for e.NextExecuteTime <= now && (!finite || e.NextExecuteTime <= end+c.eps) {
			c.ExecuteGameplayEffect(e.Handle)
			e.NextExecuteTime += period
		}
	}
	for _, e := range slices.Clone(c.effects) {
		if e.IsRemoved() {
			continue
		}
		if end, finite := e.ExpiresAt(); finite && end <= now {
			c.removeActiveEffect(e.Handle, true)
		}
	}
}

// ExecuteGameplayEffect runs one periodic execution of h. Effects held
// back by stacking do not execute.
func (c *Container) ExecuteGameplayEffect(h Handle) bool {
	e, ok := c.byHandle[h]
	if !ok || !e.contributing {
		return false
	}
	if err := e.fire(evExecute); err != nil {
		c.log.Warn("effect lifecycle", zap.Stringer("handle", h), zap.Error(err))
	}
	n := c.ExecuteActiveEffectsFrom(e.Spec, NewQualifier())
	if err := e.fire(evSettle); err != nil {
		c.log.Warn("effect lifecycle", zap.Stringer("handle", h), zap.Error(err))
	}
	c.log.Debug("periodic effect executed",
		zap.Stringer("handle", h),
		zap.String("effect", e.Spec.Def.Name),
		zap.Int("modifiers", n),
		zap.Float64("time", c.worldTime))
	c.emitExecuted(h, e.Spec.Def)
	return true
}

func (c *Container) emitExecuted(h Handle, def *Definition) {
	if c.bus != nil {
		event.Emit(c.bus, event.EffectExecuted{Target: c.owner, Handle: int64(h), Effect: def.Name})
	}
}

// Flush pushes every invalidated attribute's aggregated value to the store.
func (c *Container) Flush() {
	for pass := 0; len(c.pending) > 0; pass++ {
		if pass >= c.maxPasses {
			c.log.Warn("attribute flush did not settle",
				zap.Int("passes", pass),
				zap.Int("pending", len(c.pending)))
			clear(c.pending)
			return
		}
		attrs := slices.Sorted(maps.Keys(c.pending))
		clear(c.pending)
		for _, attr := range attrs {
			if a := c.attrAggs[attr].Get(); a != nil {
				c.store.SetFinal(attr, a.Evaluate().Magnitude)
			}
		}
	}
}

// PreDestroy removes every effect and releases the attribute aggregators.
// The container refuses new applications afterwards.
func (c *Container) PreDestroy() {
	if c.destroyed {
		return
	}
	for len(c.effects) > 0 {
		c.removeActiveEffect(c.effects[0].Handle, false)
	}
	for attr, cancel := range c.unwatch {
		cancel()
		delete(c.unwatch, attr)
	}
	for attr, r := range c.attrAggs {
		r.Release()
		delete(c.attrAggs, attr)
	}
	clear(c.pending)
	c.destroyed = true
	c.log.Debug("effect container destroyed")
}

func (c *Container) roll() float64 {
	if c.rng != nil {
		return c.rng.Float64()
	}
	return rand.Float64()
}

// --- queries ---

func (c *Container) Effect(h Handle) (*ActiveEffect, bool) {
	e, ok := c.byHandle[h]
	return e, ok
}

// Handles lists live handles in admission order.
func (c *Container) Handles() []Handle {
	out := make([]Handle, len(c.effects))
	for i, e := range c.effects {
		out[i] = e.Handle
	}
	return out
}

// IsActive reports whether h is admitted and not removed. Effects held back
// by stacking are still active.
func (c *Container) IsActive(h Handle) bool {
	e, ok := c.byHandle[h]
	return ok && !e.IsRemoved()
}

// IsContributing reports whether h currently feeds the attribute aggregators.
func (c *Container) IsContributing(h Handle) bool {
	e, ok := c.byHandle[h]
	return ok && e.contributing
}

// Magnitude is the evaluated magnitude h's spec carries for attr, whether
// or not it currently contributes.
func (c *Container) Magnitude(h Handle, attr attribute.Attribute) (float64, bool) {
	e, ok := c.byHandle[h]
	if !ok {
		return 0, false
	}
	return e.Spec.Magnitude(attr)
}

func (c *Container) MagnitudeByTag(h Handle, tag tags.Tag) (float64, bool) {
	e, ok := c.byHandle[h]
	if !ok {
		return 0, false
	}
	return e.Spec.MagnitudeByTag(tag)
}

func (c *Container) Duration(h Handle) (float64, bool) {
	e, ok := c.byHandle[h]
	if !ok {
		return 0, false
	}
	return e.Spec.Duration(), true
}

// TimeRemaining reports the seconds left on every effect whose effect or
// owned tags match any of query, in admission order. Infinite effects
// report InfiniteDuration.
func (c *Container) TimeRemaining(query tags.Set) []float64 {
	var out []float64
	for _, e := range c.effects {
		def := e.Spec.Def
		if !def.EffectTags.HasAny(query) && !def.OwnedTags.HasAny(query) {
			continue
		}
		end, finite := e.ExpiresAt()
		if !finite {
			out = append(out, InfiniteDuration)
			continue
		}
		out = append(out, end-c.worldTime)
	}
	return out
}

// OwnedTags are the owner's base tags plus those granted by active effects.
func (c *Container) OwnedTags() tags.Set {
	out := c.baseTags
	for _, e := range c.effects {
		out = out.Union(e.Spec.OwnedTags())
	}
	return out
}

func (c *Container) HasAnyTags(t tags.Set) bool { return c.OwnedTags().HasAny(t) }

// AttributeValue returns the aggregated value of attr on the owner.
func (c *Container) AttributeValue(attr attribute.Attribute) float64 {
	if a := c.attrAggs[attr].Get(); a != nil {
		return a.Evaluate().Magnitude
	}
	return c.store.Base(attr)
}

package effect

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/core/ecs"
	"github.com/l1jgo/skillsys/internal/tags"
)

// InstigatorContext identifies who created a spec.
type InstigatorContext struct {
	Instigator ecs.EntityID
	// Source reads the instigator's attributes for dynamic levels.
	Source attribute.Source
	// Tags are the instigator's tags at creation time.
	Tags tags.Set
}

// EffectSpec is an instance of a Definition at a level, ready to be applied.
// A spec owns its aggregators; Release gives them up.
type EffectSpec struct {
	ID         uuid.UUID
	Def        *Definition
	Level      *LevelResolver
	Instigator InstigatorContext
	Modifiers  []ModifierSpec

	StackingPolicy StackingPolicy
	StackedName    string

	TargetEffectSpecs []*EffectSpec

	duration AggregatorRef
	period   AggregatorRef
	chance   AggregatorRef
	log      *zap.Logger
}

func NewEffectSpec(def *Definition, level float64, inst InstigatorContext, log *zap.Logger) *EffectSpec {
	if log == nil {
		log = zap.NewNop()
	}
	lvl := NewLevelResolver(level, def.Level, inst.Source, log)
	s := &EffectSpec{
		ID:             uuid.New(),
		Def:            def,
		Level:          lvl,
		Instigator:     inst,
		Modifiers:      make([]ModifierSpec, len(def.Modifiers)),
		StackingPolicy: def.StackingPolicy,
		StackedName:    def.StackedName,
		duration:       NewAggregatorRef(NewAggregator(ModifierData{Magnitude: def.Duration}, lvl)),
		period:         NewAggregatorRef(NewAggregator(ModifierData{Magnitude: def.Period}, lvl)),
		log:            log,
	}
	if !def.ChanceToApply.IsZero() {
		s.chance = NewAggregatorRef(NewAggregator(ModifierData{Magnitude: def.ChanceToApply}, lvl))
	}
	for i := range def.Modifiers {
		info := &def.Modifiers[i]
		data := ModifierData{
			Magnitude:   info.Magnitude,
			OwnedTags:   info.OwnedTags,
			RequireTags: info.RequiredTags,
			IgnoreTags:  info.IgnoreTags,
			Callbacks:   info.Callbacks,
		}
		m := ModifierSpec{
			Info:       info,
			Aggregator: NewAggregatorRef(NewAggregator(data, lvl.forModifier(info.Level, inst.Source))),
		}
		if info.TargetEffect != nil {
			m.TargetEffectSpec = NewEffectSpec(info.TargetEffect, level, inst, log)
		}
		s.Modifiers[i] = m
	}
	for _, td := range def.TargetEffects {
		s.TargetEffectSpecs = append(s.TargetEffectSpecs, NewEffectSpec(td, level, inst, log))
	}
	return s
}

// Clone returns a spec sharing this one's aggregators, each with an extra
// owner. Follow with MakeUnique to detach the copy.
func (s *EffectSpec) Clone() *EffectSpec {
	cp := *s
	cp.ID = uuid.New()
	cp.duration = NewAggregatorRef(s.duration.Get())
	cp.period = NewAggregatorRef(s.period.Get())
	cp.chance = NewAggregatorRef(s.chance.Get())
	cp.Modifiers = make([]ModifierSpec, len(s.Modifiers))
	for i, m := range s.Modifiers {
		cp.Modifiers[i] = ModifierSpec{Info: m.Info, Aggregator: NewAggregatorRef(m.Aggregator.Get())}
		if m.TargetEffectSpec != nil {
			cp.Modifiers[i].TargetEffectSpec = m.TargetEffectSpec.Clone()
		}
	}
	cp.TargetEffectSpecs = make([]*EffectSpec, len(s.TargetEffectSpecs))
	for i, t := range s.TargetEffectSpecs {
		cp.TargetEffectSpecs[i] = t.Clone()
	}
	return &cp
}

// MakeUnique deep-copies every aggregator the spec owns so nothing it reads
// is shared with the spec it was cloned from. Handles are cleared: the
// copies belong to no active effect yet.
func (s *EffectSpec) MakeUnique() {
	s.ID = uuid.New()
	s.Level = s.Level.clone()
	s.duration.makeUniqueDeep(false)
	s.period.makeUniqueDeep(false)
	s.chance.makeUniqueDeep(false)
	for i := range s.Modifiers {
		s.Modifiers[i].Aggregator.makeUniqueDeep(false)
		if t := s.Modifiers[i].TargetEffectSpec; t != nil {
			t.MakeUnique()
		}
	}
	for _, t := range s.TargetEffectSpecs {
		t.MakeUnique()
	}
}

// Release gives up every aggregator the spec owns, including linked specs.
func (s *EffectSpec) Release() {
	s.duration.Release()
	s.period.Release()
	s.chance.Release()
	for i := range s.Modifiers {
		s.Modifiers[i].Aggregator.Release()
		if t := s.Modifiers[i].TargetEffectSpec; t != nil {
			t.Release()
		}
	}
	for _, t := range s.TargetEffectSpecs {
		t.Release()
	}
}

func (s *EffectSpec) setHandle(h Handle) {
	for _, r := range []AggregatorRef{s.duration, s.period, s.chance} {
		if a := r.Get(); a != nil {
			a.SetHandle(h)
		}
	}
	for i := range s.Modifiers {
		if a := s.Modifiers[i].Aggregator.Get(); a != nil {
			a.SetHandle(h)
		}
	}
}

func evaluateRef(r AggregatorRef, fallback float64) float64 {
	if a := r.Get(); a != nil {
		return a.Evaluate().Magnitude
	}
	return fallback
}

// Duration in seconds; InfiniteDuration or InstantApplication are sentinels.
func (s *EffectSpec) Duration() float64 { return evaluateRef(s.duration, InstantApplication) }

// Period in seconds; NoPeriod when the effect does not execute periodically.
func (s *EffectSpec) Period() float64 { return evaluateRef(s.period, NoPeriod) }

// ChanceToApply is the probability in [0,1] that application succeeds.
func (s *EffectSpec) ChanceToApply() float64 { return evaluateRef(s.chance, 1) }

func (s *EffectSpec) IsInstant() bool  { return s.Duration() == InstantApplication }
func (s *EffectSpec) IsPeriodic() bool { return s.Period() > NoPeriod }
func (s *EffectSpec) IsInfinite() bool { return s.Duration() == InfiniteDuration }

// DurationAggregator exposes the duration so duration modifiers can stack on it.
func (s *EffectSpec) DurationAggregator() *Aggregator { return s.duration.Get() }

// Magnitude sums the evaluated attribute modifiers s carries for attr.
func (s *EffectSpec) Magnitude(attr attribute.Attribute) (float64, bool) {
	return s.sumModifiers(func(m *ModifierSpec) bool { return m.Info.Attribute == attr })
}

// MagnitudeByTag sums the evaluated attribute modifiers owning tag.
func (s *EffectSpec) MagnitudeByTag(tag tags.Tag) (float64, bool) {
	return s.sumModifiers(func(m *ModifierSpec) bool { return m.Info.OwnedTags.HasTag(tag) })
}

// StackingMagnitude is the value compared by Highest and Lowest stacking.
func (s *EffectSpec) StackingMagnitude() float64 {
	v, _ := s.sumModifiers(func(*ModifierSpec) bool { return true })
	return v
}

func (s *EffectSpec) sumModifiers(match func(*ModifierSpec) bool) (float64, bool) {
	total, found := 0.0, false
	for i := range s.Modifiers {
		m := &s.Modifiers[i]
		if m.Info.Type != TargetAttribute || m.Info.Facet != FacetMagnitude || !match(m) {
			continue
		}
		total += m.Evaluate().Magnitude
		found = true
	}
	return total, found
}

// OwnedTags are the tags the spec grants while active.
func (s *EffectSpec) OwnedTags() tags.Set { return s.Def.OwnedTags }

// ApplyModifiersFrom links or snapshots other's modifiers into s wherever
// they qualify and returns the number of placements.
func (s *EffectSpec) ApplyModifiersFrom(other *EffectSpec, q Qualifier) int {
	return s.modifyFrom(other, q, func(src *ModifierSpec, dst *Aggregator) {
		dst.ApplyMod(src.Info.Op, src.Aggregator, src.ShouldApplyAsSnapshot(q))
	})
}

// ExecuteModifiersFrom bakes other's current modifier values into s.
func (s *EffectSpec) ExecuteModifiersFrom(other *EffectSpec, q Qualifier) int {
	return s.modifyFrom(other, q, func(src *ModifierSpec, dst *Aggregator) {
		dst.ExecuteMod(src.Info.Op, src.Evaluate())
	})
}

func (s *EffectSpec) modifyFrom(other *EffectSpec, q Qualifier, place func(*ModifierSpec, *Aggregator)) int {
	if other == s || !s.Def.acceptsModifiersFrom(other.Def) {
		return 0
	}
	n := 0
	for i := range other.Modifiers {
		src := &other.Modifiers[i]
		if !src.CanModifyInContext(q) {
			continue
		}
		switch src.Info.Facet {
		case FacetDuration:
			if d := s.duration.Get(); d != nil {
				place(src, d)
				n++
			}
		case FacetLinkedEffect:
			// Linked specs only apply on admission; an active spec never uses them.
			if src.TargetEffectSpec != nil && !s.handle().IsValid() {
				s.TargetEffectSpecs = append(s.TargetEffectSpecs, src.TargetEffectSpec.Clone())
				n++
			}
		default:
			for j := range s.Modifiers {
				dst := &s.Modifiers[j]
				if !src.CanModifyModifier(dst, q) {
					continue
				}
				if a := dst.Aggregator.Get(); a != nil {
					place(src, a)
					n++
				}
			}
		}
	}
	if n > 0 {
		s.log.Debug("modifiers applied to spec",
			zap.String("effect", s.Def.Name),
			zap.String("from", other.Def.Name),
			zap.Stringer("context", q.Type()),
			zap.Int("count", n))
	}
	return n
}

// handle is the active effect handle assigned on admission.
func (s *EffectSpec) handle() Handle {
	if a := s.duration.Get(); a != nil {
		return a.Handle()
	}
	return InvalidHandle
}

func (s *EffectSpec) removeModsFrom(h Handle) {
	if a := s.duration.Get(); a != nil {
		a.RemoveModsFrom(h)
	}
	for i := range s.Modifiers {
		if a := s.Modifiers[i].Aggregator.Get(); a != nil {
			a.RemoveModsFrom(h)
		}
	}
}

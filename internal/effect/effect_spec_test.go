package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/skillsys/internal/tags"
)

func newSpec(t *testing.T, def *Definition) *EffectSpec {
	t.Helper()
	s := NewEffectSpec(def, 1, InstigatorContext{}, zaptest.NewLogger(t))
	t.Cleanup(s.Release)
	return s
}

func TestNewEffectSpec(t *testing.T) {
	fire := attrMod("health", OpAdditive, -7)
	fire.OwnedTags = tags.NewSet("damage.fire")
	def := &Definition{
		Name:     "ignite",
		Duration: Constant(10),
		Modifiers: []ModifierInfo{
			attrMod("health", OpAdditive, -3),
			fire,
			attrMod("armor", OpAdditive, -2),
			ctxMod(TargetIncoming, "health", OpMultiplicative, 3),
		},
	}
	s := newSpec(t, def)

	assert.Equal(t, 10.0, s.Duration())
	assert.False(t, s.IsInstant())
	assert.False(t, s.IsPeriodic())
	assert.False(t, s.IsInfinite())
	assert.Equal(t, 1.0, s.ChanceToApply())

	v, ok := s.Magnitude("health")
	require.True(t, ok)
	assert.Equal(t, -10.0, v)
	_, ok = s.Magnitude("mana")
	assert.False(t, ok)

	v, ok = s.MagnitudeByTag(tags.New("damage.fire"))
	require.True(t, ok)
	assert.Equal(t, -7.0, v)
	assert.Equal(t, -12.0, s.StackingMagnitude(), "context modifiers are not summed")
}

func TestNewEffectSpec_ScalesWithLevel(t *testing.T) {
	def := &Definition{
		Name:      "bolt",
		Modifiers: []ModifierInfo{{Magnitude: ScalableFloat{Value: -5, Curve: linearCurve()}, Attribute: "health"}},
	}
	s := NewEffectSpec(def, 4, InstigatorContext{}, nil)
	defer s.Release()

	v, _ := s.Magnitude("health")
	assert.Equal(t, -20.0, v)
	assert.True(t, s.IsInstant())
}

func TestEffectSpec_CloneThenMakeUnique(t *testing.T) {
	def := durationDef("might", 10, attrMod("strength", OpAdditive, 5))
	orig := newSpec(t, def)

	cp := orig.Clone()
	assert.Same(t, orig.Modifiers[0].Aggregator.Get(), cp.Modifiers[0].Aggregator.Get())

	cp.MakeUnique()
	assert.NotEqual(t, orig.ID, cp.ID)
	assert.NotSame(t, orig.Modifiers[0].Aggregator.Get(), cp.Modifiers[0].Aggregator.Get())

	cp.Modifiers[0].Aggregator.Get().SetBase(ModifierData{Magnitude: Constant(50)})
	v, _ := orig.Magnitude("strength")
	assert.Equal(t, 5.0, v)

	orig.Release()
	v, _ = cp.Magnitude("strength")
	assert.Equal(t, 50.0, v)
	cp.Release()
}

func TestEffectSpec_OutgoingIsSnapshot(t *testing.T) {
	rage := newSpec(t, durationDef("rage", InfiniteDuration, ctxMod(TargetOutgoing, "health", OpMultiplicative, 2)))
	hit := newSpec(t, durationDef("hit", InstantApplication, attrMod("health", OpAdditive, -20)))

	n := hit.ApplyModifiersFrom(rage, NewQualifier().WithType(TargetOutgoing))
	require.Equal(t, 1, n)
	v, _ := hit.Magnitude("health")
	assert.Equal(t, -40.0, v)

	rage.Modifiers[0].Aggregator.Get().SetBase(ModifierData{Magnitude: Constant(10)})
	rage.Release()
	v, _ = hit.Magnitude("health")
	assert.Equal(t, -40.0, v, "the send-time value is kept")
}

func TestEffectSpec_IncomingIsLinked(t *testing.T) {
	armor := NewEffectSpec(durationDef("armor", InfiniteDuration, ctxMod(TargetIncoming, "health", OpMultiplicative, 0.5)), 1, InstigatorContext{}, nil)
	hit := newSpec(t, durationDef("hit", InstantApplication, attrMod("health", OpAdditive, -20)))

	require.Equal(t, 1, hit.ApplyModifiersFrom(armor, NewQualifier().WithType(TargetIncoming)))
	v, _ := hit.Magnitude("health")
	assert.Equal(t, -10.0, v)

	armor.Modifiers[0].Aggregator.Get().SetBase(ModifierData{Magnitude: Constant(0.25)})
	v, _ = hit.Magnitude("health")
	assert.Equal(t, -5.0, v)

	armor.Release()
	v, _ = hit.Magnitude("health")
	assert.Equal(t, -20.0, v)
}

func TestEffectSpec_ExecuteModifiersFrom(t *testing.T) {
	armor := NewEffectSpec(durationDef("armor", InfiniteDuration, ctxMod(TargetIncoming, "health", OpMultiplicative, 0.5)), 1, InstigatorContext{}, nil)
	hit := newSpec(t, durationDef("hit", InstantApplication, attrMod("health", OpAdditive, -20)))

	require.Equal(t, 1, hit.ExecuteModifiersFrom(armor, NewQualifier().WithType(TargetIncoming)))
	armor.Release()
	v, _ := hit.Magnitude("health")
	assert.Equal(t, -10.0, v)
	assert.Zero(t, hit.Modifiers[0].Aggregator.Get().NumMods(OpMultiplicative))
}

func TestEffectSpec_EffectTagGating(t *testing.T) {
	hitDef := durationDef("hit", InstantApplication, attrMod("health", OpAdditive, -20))
	hitDef.EffectRequiredTags = tags.NewSet("ward")
	hit := newSpec(t, hitDef)
	q := NewQualifier().WithType(TargetIncoming)

	plain := newSpec(t, durationDef("armor", InfiniteDuration, ctxMod(TargetIncoming, "health", OpMultiplicative, 0.5)))
	assert.Zero(t, hit.ApplyModifiersFrom(plain, q))

	wardDef := durationDef("ward", InfiniteDuration, ctxMod(TargetIncoming, "health", OpMultiplicative, 0.5))
	wardDef.EffectTags = tags.NewSet("ward", "holy")
	ward := newSpec(t, wardDef)
	assert.Equal(t, 1, hit.ApplyModifiersFrom(ward, q))

	hitDef.EffectIgnoreTags = tags.NewSet("holy")
	assert.Zero(t, hit.ApplyModifiersFrom(ward, q))
	assert.Zero(t, hit.ApplyModifiersFrom(hit, q))
}

func TestEffectSpec_DurationFacet(t *testing.T) {
	linger := ctxMod(TargetIncoming, "", OpAdditive, 5)
	linger.Facet = FacetDuration
	src := newSpec(t, durationDef("linger", InfiniteDuration, linger))
	dst := newSpec(t, durationDef("slow", 10, attrMod("speed", OpMultiplicative, 0.5)))

	require.Equal(t, 1, dst.ApplyModifiersFrom(src, NewQualifier().WithType(TargetIncoming)))
	assert.Equal(t, 15.0, dst.Duration())
	v, _ := dst.Magnitude("speed")
	assert.Equal(t, 0.5, v, "magnitude modifiers are untouched")
}

func TestEffectSpec_LinkedEffectFacet(t *testing.T) {
	burn := durationDef("burn", 3, attrMod("health", OpAdditive, -1))
	rider := ctxMod(TargetOutgoing, "", OpAdditive, 0)
	rider.Facet = FacetLinkedEffect
	rider.TargetEffect = burn
	src := newSpec(t, durationDef("flame_weapon", InfiniteDuration, rider))
	require.NotNil(t, src.Modifiers[0].TargetEffectSpec)

	dst := newSpec(t, durationDef("slash", InstantApplication, attrMod("health", OpAdditive, -8)))
	require.Equal(t, 1, dst.ApplyModifiersFrom(src, NewQualifier().WithType(TargetOutgoing)))
	require.Len(t, dst.TargetEffectSpecs, 1)
	assert.Equal(t, "burn", dst.TargetEffectSpecs[0].Def.Name)
	assert.Equal(t, 3.0, dst.TargetEffectSpecs[0].Duration())
}

func TestEffectSpec_LinkedEffectSkipsActiveSpec(t *testing.T) {
	rider := ctxMod(TargetActive, "", OpAdditive, 0)
	rider.Facet = FacetLinkedEffect
	rider.TargetEffect = durationDef("burn", 3, attrMod("health", OpAdditive, -1))
	src := newSpec(t, durationDef("flame_aura", InfiniteDuration, rider))

	dst := newSpec(t, durationDef("poison", 10, attrMod("health", OpAdditive, -2)))
	dst.setHandle(4)
	assert.Zero(t, dst.ApplyModifiersFrom(src, NewQualifier().WithType(TargetActive)))
	assert.Empty(t, dst.TargetEffectSpecs)
}

package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/skillsys/internal/tags"
)

func arithmeticFixture() (AggregatorRef, []AggregatorRef) {
	target := constAgg(10)
	mods := []AggregatorRef{constAgg(2), constAgg(3), constAgg(1.5), constAgg(2)}
	a := target.Get()
	a.ApplyMod(OpAdditive, mods[0], Link)
	a.ApplyMod(OpAdditive, mods[1], Link)
	a.ApplyMod(OpMultiplicative, mods[2], Link)
	a.ApplyMod(OpDivision, mods[3], Link)
	return target, mods
}

func TestAggregator_Arithmetic(t *testing.T) {
	target, _ := arithmeticFixture()
	ev := target.Get().Evaluate()
	require.True(t, ev.Valid)
	assert.InDelta(t, 11.25, ev.Magnitude, 1e-9)
}

func TestAggregator_LastOverrideWins(t *testing.T) {
	target, _ := arithmeticFixture()
	a := target.Get()
	first, second := constAgg(50), constAgg(99)
	a.ApplyMod(OpOverride, first, Link)
	a.ApplyMod(OpOverride, second, Link)
	assert.Equal(t, 99.0, a.Evaluate().Magnitude)

	second.Release()
	assert.Equal(t, 50.0, a.Evaluate().Magnitude, "dead override no longer counts")
}

func TestAggregator_ZeroDivisorCountsAsOne(t *testing.T) {
	target := constAgg(8)
	a := target.Get()
	a.ApplyMod(OpDivision, constAgg(0), Snapshot)
	a.ApplyMod(OpDivision, constAgg(2), Snapshot)
	assert.Equal(t, 4.0, a.Evaluate().Magnitude)
}

func TestAggregator_EvaluateIsMemoised(t *testing.T) {
	target, _ := arithmeticFixture()
	a := target.Get()

	first := a.Evaluate()
	assert.False(t, a.IsDirty())
	assert.Equal(t, first, a.Evaluate())

	a.MarkDirty()
	assert.True(t, a.IsDirty())
	assert.Equal(t, first.Magnitude, a.Evaluate().Magnitude)
}

func TestAggregator_DirtyPropagatesToDependants(t *testing.T) {
	b := constAgg(5)
	a := constAgg(1)
	a.Get().ApplyMod(OpAdditive, b, Link)
	require.Equal(t, 6.0, a.Get().Evaluate().Magnitude)
	require.Equal(t, 1, b.Get().NumDependants())

	b.Get().SetBase(ModifierData{Magnitude: Constant(7)})
	assert.True(t, a.Get().IsDirty())
	assert.Equal(t, 8.0, a.Get().Evaluate().Magnitude)
}

func TestAggregator_DiamondVisitsEachOnce(t *testing.T) {
	root := constAgg(1)
	left, right, top := constAgg(0), constAgg(0), constAgg(0)
	left.Get().ApplyMod(OpAdditive, root, Link)
	right.Get().ApplyMod(OpAdditive, root, Link)
	top.Get().ApplyMod(OpAdditive, left, Link)
	top.Get().ApplyMod(OpAdditive, right, Link)
	assert.Equal(t, 2.0, top.Get().Evaluate().Magnitude)

	var hits int
	top.Get().SetOnDirty(func(*Aggregator) { hits++ })
	root.Get().MarkDirty()
	assert.Equal(t, 1, hits)
}

func TestAggregator_SnapshotSurvivesSource(t *testing.T) {
	b := constAgg(4)
	b.Get().ApplyMod(OpMultiplicative, constAgg(2), Snapshot)
	a := constAgg(10)
	a.Get().ApplyMod(OpAdditive, b, Snapshot)
	before := a.Get().Evaluate().Magnitude
	require.Equal(t, 18.0, before)

	b.Get().SetBase(ModifierData{Magnitude: Constant(100)})
	assert.Equal(t, before, a.Get().Evaluate().Magnitude, "copy ignores later source changes")

	b.Release()
	assert.Nil(t, b.Get())
	assert.Equal(t, before, a.Get().Evaluate().Magnitude)
}

func TestAggregator_SnapshotFreezesDynamicLevel(t *testing.T) {
	f := newLevelFixture(2)
	lvl := NewLevelResolver(1, LevelDef{Attribute: "level"}, f.reg.Source(f.id), zaptest.NewLogger(t))
	b := NewAggregatorRef(NewAggregator(ModifierData{Magnitude: ScalableFloat{Value: 10, Curve: linearCurve()}}, lvl))
	defer b.Release()
	a := constAgg(0)
	a.Get().ApplyMod(OpAdditive, b, Snapshot)
	require.Equal(t, 20.0, a.Get().Evaluate().Magnitude)
	require.Equal(t, 1, f.set.Watchers("level"), "the copy does not watch the level")

	f.set.SetBase("level", 5)
	assert.Equal(t, 50.0, b.Get().Evaluate().Magnitude)
	assert.Equal(t, 20.0, a.Get().Evaluate().Magnitude)
}

func TestAggregator_UniqueCopyOwnsItsLevel(t *testing.T) {
	f := newLevelFixture(5)
	lvl := NewLevelResolver(1, LevelDef{Attribute: "level"}, f.reg.Source(f.id), zaptest.NewLogger(t))
	orig := NewAggregatorRef(NewAggregator(ModifierData{Magnitude: ScalableFloat{Value: 10, Curve: linearCurve()}}, lvl))
	defer orig.Release()
	cp := NewAggregatorRef(orig.Get())
	cp.MakeUniqueDeep()
	defer cp.Release()

	cp.Get().SnapshotLevel()
	f.set.SetBase("level", 6)
	assert.Equal(t, 60.0, orig.Get().Evaluate().Magnitude, "original still follows the level")
	assert.Equal(t, 50.0, cp.Get().Evaluate().Magnitude)
}

func TestAggregator_DeadLinkContributesNothing(t *testing.T) {
	b := constAgg(5)
	a := constAgg(1)
	a.Get().ApplyMod(OpAdditive, b, Link)
	require.Equal(t, 6.0, a.Get().Evaluate().Magnitude)

	b.Release()
	assert.True(t, a.Get().IsDirty(), "release invalidates readers")
	assert.Equal(t, 1.0, a.Get().Evaluate().Magnitude)
	assert.Zero(t, a.Get().NumMods(OpAdditive))
}

func TestAggregator_CyclicLinkPanics(t *testing.T) {
	a, b, c := constAgg(1), constAgg(1), constAgg(1)
	a.Get().ApplyMod(OpAdditive, b, Link)
	b.Get().ApplyMod(OpAdditive, c, Link)

	requirePanicsWith(t, ErrCyclicDependency, func() {
		c.Get().ApplyMod(OpAdditive, a, Link)
	})
	requirePanicsWith(t, ErrCyclicDependency, func() {
		a.Get().ApplyMod(OpAdditive, a, Link)
	})
	assert.NotPanics(t, func() {
		c.Get().ApplyMod(OpAdditive, a, Snapshot)
	}, "a snapshot is a copy, not a cycle")
}

func TestAggregator_ExecuteModBakesIntoBase(t *testing.T) {
	health := constAgg(100)
	h := health.Get()

	h.ExecuteMod(OpAdditive, taggedAgg(-30, "damage.fire").Get().Evaluate())
	h.ExecuteMod(OpMultiplicative, constAgg(0.5).Get().Evaluate())
	h.ExecuteMod(OpDivision, constAgg(0).Get().Evaluate())
	assert.Equal(t, 35.0, h.Evaluate().Magnitude)
	assert.True(t, h.Evaluate().Tags.HasTag(tags.New("damage.fire")))
	assert.Zero(t, h.NumMods(OpAdditive), "nothing is linked")

	h.ExecuteMod(OpOverride, constAgg(1).Get().Evaluate())
	assert.Equal(t, 1.0, h.Evaluate().Magnitude)

	h.ExecuteMod(OpAdditive, EvaluatedData{Magnitude: 50})
	assert.Equal(t, 1.0, h.Evaluate().Magnitude, "invalid data is ignored")
}

func TestAggregator_RemoveModsFromHandle(t *testing.T) {
	one, two := constAgg(3), constAgg(4)
	one.Get().SetHandle(1)
	two.Get().SetHandle(2)
	target := constAgg(0)
	a := target.Get()
	a.ApplyMod(OpAdditive, one, Link)
	a.ApplyMod(OpAdditive, two, Snapshot)
	require.Equal(t, 7.0, a.Evaluate().Magnitude)

	assert.Equal(t, 1, a.RemoveModsFrom(2), "snapshot keeps its handle")
	assert.Equal(t, 3.0, a.Evaluate().Magnitude)
	assert.Zero(t, a.RemoveModsFrom(InvalidHandle))
	assert.Equal(t, 1, a.RemoveModsFrom(1))
	assert.Zero(t, one.Get().NumDependants())
	assert.Equal(t, 0.0, a.Evaluate().Magnitude)
}

func TestAggregator_TagsUnionContributors(t *testing.T) {
	target := NewAggregatorRef(NewAggregator(ModifierData{OwnedTags: tags.NewSet("base")}, nil))
	target.Get().ApplyMod(OpAdditive, taggedAgg(1, "fire"), Snapshot)
	target.Get().ApplyMod(OpMultiplicative, taggedAgg(1, "dot"), Snapshot)

	got := target.Get().Evaluate().Tags
	assert.True(t, got.HasAll(tags.NewSet("base", "fire", "dot")))
}

func TestAggregator_CallbacksRunPreThenPost(t *testing.T) {
	var calls []string
	cbA := NewAggregatorRef(NewAggregator(ModifierData{
		Callbacks: []Extension{recordingExt{id: "a", calls: &calls, add: 1}},
	}, nil))
	cbB := NewAggregatorRef(NewAggregator(ModifierData{
		Callbacks: []Extension{recordingExt{id: "b", calls: &calls, add: 10}},
	}, nil))

	target := constAgg(5)
	target.Get().ApplyMod(OpCallback, cbA, Link)
	target.Get().ApplyMod(OpCallback, cbB, Link)

	ev := target.Get().Evaluate()
	assert.Equal(t, []string{"pre:a", "pre:b", "post:a", "post:b"}, calls)
	assert.Equal(t, 16.0, ev.Magnitude)
	assert.True(t, ev.Tags.HasAll(tags.NewSet("seen.a", "seen.b")))
}

func TestAggregator_BuiltinClamp(t *testing.T) {
	clamp := NewAggregatorRef(NewAggregator(ModifierData{
		Callbacks: []Extension{ClampExtension{Name: "clamp", Min: 0, Max: 100}},
	}, nil))
	target := constAgg(20)
	target.Get().ApplyMod(OpAdditive, constAgg(-50), Snapshot)
	target.Get().ApplyMod(OpCallback, clamp, Link)
	assert.Equal(t, 0.0, target.Get().Evaluate().Magnitude)
}

package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/tags"
)

func writeYAML(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func builtins(t *testing.T) *effect.Registry {
	t.Helper()
	reg := effect.NewRegistry()
	require.NoError(t, effect.RegisterBuiltins(reg))
	return reg
}

const effectsYAML = `
curves:
  - name: linear
    keys:
      - {level: 10, value: 10}
      - {level: 1, value: 1}
effects:
  - name: poison
    duration: 10
    period: 2
    effect_tags: [debuff, dot]
    stacking: {policy: highest, name: Poison}
    modifiers:
      - {attribute: health, op: additive, magnitude: -5, curve: linear}
  - name: chill
    duration: 4
    modifiers:
      - {attribute: speed, op: multiplicative, magnitude: 0.5}
  - name: frostbolt
    level: {attribute: level}
    chance: 0.75
    required_target_tags: [Alive]
    target_effects: [chill]
    modifiers:
      - attribute: health
        op: additive
        magnitude: -12
        owned_tags: [damage.frost]
        callbacks: [clamp_non_negative]
  - name: warded
    duration: -1
    owned_tags: [warded]
    stacking: {policy: callback, extension: oldest_wins}
    modifiers:
      - {attribute: health, type: incoming, op: multiplicative, magnitude: 0.5, copy: always_snapshot, level: {attribute: spirit}}
      - {type: outgoing, facet: linked_effect, target_effect: chill}
`

func TestLoadEffectTable(t *testing.T) {
	tbl, err := LoadEffectTable(writeYAML(t, "effects.yaml", effectsYAML), builtins(t))
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.Count())
	assert.Equal(t, []string{"chill", "frostbolt", "poison", "warded"}, tbl.Names())
	assert.Nil(t, tbl.Get("missing"))
	require.NotNil(t, tbl.Curve("linear"))
	assert.Equal(t, 5.0, tbl.Curve("linear").Eval(5))

	poison := tbl.Get("poison")
	require.NotNil(t, poison)
	assert.Equal(t, 10.0, poison.Duration.At(1))
	assert.Equal(t, 2.0, poison.Period.At(1))
	assert.Equal(t, effect.StackHighest, poison.StackingPolicy)
	assert.Equal(t, "Poison", poison.StackedName)
	assert.True(t, poison.EffectTags.HasAll(tags.NewSet("debuff", "dot")))
	require.Len(t, poison.Modifiers, 1)
	assert.Equal(t, -15.0, poison.Modifiers[0].Magnitude.At(3))
	assert.True(t, poison.Modifiers[0].Level.InheritFromOwner)

	frost := tbl.Get("frostbolt")
	assert.Zero(t, frost.Duration.At(1), "missing duration means instant")
	assert.Equal(t, 0.75, frost.ChanceToApply.At(1))
	assert.Equal(t, "level", string(frost.Level.Attribute))
	assert.True(t, frost.ApplicationRequiredTargetTags.HasTag(tags.New("alive")))
	require.Len(t, frost.TargetEffects, 1)
	assert.Same(t, tbl.Get("chill"), frost.TargetEffects[0])
	require.Len(t, frost.Modifiers[0].Callbacks, 1)
	assert.Equal(t, "clamp_non_negative", frost.Modifiers[0].Callbacks[0].ID())

	warded := tbl.Get("warded")
	assert.Equal(t, effect.InfiniteDuration, warded.Duration.At(1))
	assert.Equal(t, effect.StackCallback, warded.StackingPolicy)
	require.NotNil(t, warded.StackingExtension)
	assert.Equal(t, "oldest_wins", warded.StackingExtension.ID())
	in := warded.Modifiers[0]
	assert.Equal(t, effect.TargetIncoming, in.Type)
	assert.Equal(t, effect.OpMultiplicative, in.Op)
	assert.Equal(t, effect.CopyAlwaysSnapshot, in.CopyPolicy)
	assert.False(t, in.Level.InheritFromOwner)
	assert.Equal(t, "spirit", string(in.Level.Attribute))
	linked := warded.Modifiers[1]
	assert.Equal(t, effect.FacetLinkedEffect, linked.Facet)
	assert.Same(t, tbl.Get("chill"), linked.TargetEffect)
}

func TestLoadEffectTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown op", `
effects:
  - name: a
    modifiers: [{attribute: x, op: modulo}]`},
		{"unknown curve", `
effects:
  - name: a
    modifiers: [{attribute: x, op: additive, curve: nope}]`},
		{"unknown extension", `
effects:
  - name: a
    modifiers: [{attribute: x, op: additive, callbacks: [nope]}]`},
		{"unknown stacking extension", `
effects:
  - name: a
    stacking: {policy: callback, extension: nope}`},
		{"unknown target", `
effects:
  - name: a
    target_effects: [b]`},
		{"duplicate", `
effects:
  - name: a
  - name: a`},
		{"missing attribute", `
effects:
  - name: a
    modifiers: [{op: additive, magnitude: 1}]`},
		{"bad duration", `
effects:
  - name: a
    duration: -3`},
		{"cycle", `
effects:
  - name: a
    target_effects: [b]
  - name: b
    modifiers: [{type: outgoing, facet: linked_effect, target_effect: a}]`},
		{"self cycle", `
effects:
  - name: a
    target_effects: [a]`},
		{"bad yaml", `effects: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEffectTable(writeYAML(t, "effects.yaml", tt.body), builtins(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadEffectTable_MissingFile(t *testing.T) {
	_, err := LoadEffectTable(filepath.Join(t.TempDir(), "none.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEffectTable_SpecsBuild(t *testing.T) {
	tbl, err := LoadEffectTable(writeYAML(t, "effects.yaml", effectsYAML), builtins(t))
	require.NoError(t, err)

	spec := effect.NewEffectSpec(tbl.Get("frostbolt"), 1, effect.InstigatorContext{}, nil)
	defer spec.Release()
	v, ok := spec.Magnitude("health")
	require.True(t, ok)
	assert.Equal(t, -12.0, v)
	require.Len(t, spec.TargetEffectSpecs, 1)
	assert.Equal(t, 4.0, spec.TargetEffectSpecs[0].Duration())
}

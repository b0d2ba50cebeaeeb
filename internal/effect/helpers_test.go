package effect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/tags"
)

func constAgg(v float64) AggregatorRef {
	return NewAggregatorRef(NewAggregator(ModifierData{Magnitude: Constant(v)}, nil))
}

func taggedAgg(v float64, owned ...string) AggregatorRef {
	return NewAggregatorRef(NewAggregator(ModifierData{Magnitude: Constant(v), OwnedTags: tags.NewSet(owned...)}, nil))
}

func attrMod(attr attribute.Attribute, op ModOp, v float64) ModifierInfo {
	return ModifierInfo{Magnitude: Constant(v), Op: op, Type: TargetAttribute, Attribute: attr}
}

func ctxMod(target ModTarget, attr attribute.Attribute, op ModOp, v float64) ModifierInfo {
	m := attrMod(attr, op, v)
	m.Type = target
	return m
}

func durationDef(name string, duration float64, mods ...ModifierInfo) *Definition {
	return &Definition{Name: name, Duration: Constant(duration), Modifiers: mods}
}

func newTestContainer(t *testing.T, base map[attribute.Attribute]float64) (*Container, *attribute.Set) {
	t.Helper()
	set := attribute.NewSet(base)
	return NewContainer(set, zaptest.NewLogger(t), Options{}), set
}

// apply creates a spec for def, applies it and releases the caller's copy.
func apply(t *testing.T, c *Container, def *Definition) Handle {
	t.Helper()
	spec := NewEffectSpec(def, 1, InstigatorContext{}, zaptest.NewLogger(t))
	defer spec.Release()
	h, err := c.ApplySpec(spec, NewQualifier())
	require.NoError(t, err)
	return h
}

func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %v", r)
		require.True(t, errors.Is(err, target), "unexpected panic: %v", err)
	}()
	fn()
}

// recordingExt logs the order hooks run in and shifts the value.
type recordingExt struct {
	id    string
	calls *[]string
	add   float64
}

func (r recordingExt) ID() string { return r.id }

func (r recordingExt) PreEvaluate(d *ModCallbackData) {
	*r.calls = append(*r.calls, "pre:"+r.id)
	d.Value += r.add
}

func (r recordingExt) PostEvaluate(d *ModCallbackData) {
	*r.calls = append(*r.calls, "post:"+r.id)
	d.Tags = d.Tags.Union(tags.NewSet("seen." + r.id))
}

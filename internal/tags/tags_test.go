package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSet_FoldsAndDedupes(t *testing.T) {
	s := NewSet("Buff.Poison", "buff.poison", " BUFF.POISON ", "", "Debuff")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.HasTag(New("buff.poison")))
	assert.True(t, s.HasTag(New("DEBUFF")))
	assert.False(t, s.HasTag(New("buff")))
}

func TestSet_HasAll(t *testing.T) {
	owned := NewSet("fire", "dot", "magic")

	assert.True(t, owned.HasAll(Set{}), "empty requirement is always met")
	assert.True(t, owned.HasAll(NewSet("FIRE", "dot")))
	assert.False(t, owned.HasAll(NewSet("fire", "ice")))
	assert.False(t, Set{}.HasAll(NewSet("fire")))
}

func TestSet_HasAny(t *testing.T) {
	owned := NewSet("fire", "dot")

	assert.False(t, owned.HasAny(Set{}), "empty query never matches")
	assert.True(t, owned.HasAny(NewSet("ice", "dot")))
	assert.False(t, owned.HasAny(NewSet("ice", "stun")))
}

func TestSet_Union(t *testing.T) {
	a := NewSet("a", "b")
	b := NewSet("b", "c")

	u := a.Union(b)
	assert.Equal(t, []Tag{"a", "b", "c"}, u.Slice())
	assert.Equal(t, 2, a.Len(), "operands are not mutated")
	assert.True(t, a.Union(Set{}).Equal(a))
	assert.True(t, Set{}.Union(b).Equal(b))
	assert.Equal(t, "{a,b,c}", u.String())
}

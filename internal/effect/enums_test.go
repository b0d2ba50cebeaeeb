package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	op, err := ParseModOp("Multiplicative")
	require.NoError(t, err)
	assert.Equal(t, OpMultiplicative, op)
	_, err = ParseModOp("modulo")
	assert.Error(t, err)

	target, err := ParseModTarget("")
	require.NoError(t, err)
	assert.Equal(t, TargetAttribute, target)
	target, err = ParseModTarget("incoming")
	require.NoError(t, err)
	assert.Equal(t, TargetIncoming, target)

	facet, err := ParseFacet("linked_effect")
	require.NoError(t, err)
	assert.Equal(t, FacetLinkedEffect, facet)

	policy, err := ParseCopyPolicy("always_snapshot")
	require.NoError(t, err)
	assert.Equal(t, CopyAlwaysSnapshot, policy)
	_, err = ParseCopyPolicy("sometimes")
	assert.Error(t, err)

	stacking, err := ParseStackingPolicy("Highest")
	require.NoError(t, err)
	assert.Equal(t, StackHighest, stacking)
	assert.Equal(t, "callback", StackCallback.String())
	assert.Equal(t, "ModOp(9)", ModOp(9).String())
}

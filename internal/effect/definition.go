package effect

import (
	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/tags"
)

// ModifierInfo is the immutable authored description of one modifier.
type ModifierInfo struct {
	Magnitude ScalableFloat
	Op        ModOp
	Type      ModTarget
	Attribute attribute.Attribute
	Facet     Facet
	// TargetEffect is attached to the modified spec by LinkedEffect modifiers.
	TargetEffect *Definition
	CopyPolicy   CopyPolicy
	Level        LevelDef

	OwnedTags    tags.Set
	RequiredTags tags.Set
	IgnoreTags   tags.Set

	Callbacks []Extension
}

// Definition is the immutable template effect specs are created from.
type Definition struct {
	Name      string
	Duration  ScalableFloat
	Period    ScalableFloat
	Modifiers []ModifierInfo
	Level     LevelDef

	// ChanceToApply is evaluated at the spec level; the zero value means
	// the effect always applies.
	ChanceToApply ScalableFloat

	ApplicationRequiredInstigatorTags tags.Set
	ApplicationRequiredTargetTags     tags.Set

	// EffectTags identify the effect itself for queries and clearing.
	EffectTags tags.Set
	// EffectRequiredTags and EffectIgnoreTags gate which other effects may
	// modify specs of this definition, by their EffectTags.
	EffectRequiredTags tags.Set
	EffectIgnoreTags   tags.Set
	// OwnedTags are granted to the target while the effect is active.
	OwnedTags tags.Set
	// ClearTags removes active effects carrying any of these EffectTags.
	ClearTags tags.Set

	TargetEffects []*Definition

	StackingPolicy    StackingPolicy
	StackedName       string
	StackingExtension StackingExtension
}

// acceptsModifiersFrom reports whether effects of other may modify specs of d.
func (d *Definition) acceptsModifiersFrom(other *Definition) bool {
	return other.EffectTags.HasAll(d.EffectRequiredTags) &&
		!other.EffectTags.HasAny(d.EffectIgnoreTags)
}

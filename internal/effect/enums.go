package effect

import (
	"fmt"
	"strings"
)

// Duration and period sentinels.
const (
	InfiniteDuration   = -1.0
	InstantApplication = 0.0
	NoPeriod           = 0.0
)

// ModOp is the arithmetic role a modifier plays inside an aggregator.
type ModOp int

const (
	OpAdditive ModOp = iota
	OpMultiplicative
	OpDivision
	OpOverride
	OpCallback

	numModOps
)

var modOpNames = [...]string{"additive", "multiplicative", "division", "override", "callback"}

func (op ModOp) String() string {
	if op < 0 || op >= numModOps {
		return fmt.Sprintf("ModOp(%d)", int(op))
	}
	return modOpNames[op]
}

// ParseModOp accepts the lower-case names used in data files. An empty
// name is additive.
func ParseModOp(s string) (ModOp, error) {
	if s == "" {
		return OpAdditive, nil
	}
	for i, n := range modOpNames {
		if strings.EqualFold(s, n) {
			return ModOp(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mod op %q", s)
}

// ModTarget is the context a modifier applies in.
type ModTarget int

const (
	TargetAttribute ModTarget = iota // the owner's attribute
	TargetOutgoing                   // specs the owner sends out
	TargetIncoming                   // specs the owner receives
	TargetActive                     // effects already active on the owner
)

var modTargetNames = [...]string{"attribute", "outgoing", "incoming", "active"}

func (t ModTarget) String() string {
	if t < 0 || int(t) >= len(modTargetNames) {
		return fmt.Sprintf("ModTarget(%d)", int(t))
	}
	return modTargetNames[t]
}

func ParseModTarget(s string) (ModTarget, error) {
	if s == "" {
		return TargetAttribute, nil
	}
	for i, n := range modTargetNames {
		if strings.EqualFold(s, n) {
			return ModTarget(i), nil
		}
	}
	return 0, fmt.Errorf("unknown modifier target %q", s)
}

// Facet selects which part of a spec a modifier changes.
type Facet int

const (
	FacetMagnitude    Facet = iota // modifiers of the same attribute
	FacetDuration                  // the spec's duration
	FacetLinkedEffect              // attaches an extra effect to the spec
)

var facetNames = [...]string{"magnitude", "duration", "linked_effect"}

func (f Facet) String() string {
	if f < 0 || int(f) >= len(facetNames) {
		return fmt.Sprintf("Facet(%d)", int(f))
	}
	return facetNames[f]
}

func ParseFacet(s string) (Facet, error) {
	if s == "" {
		return FacetMagnitude, nil
	}
	for i, n := range facetNames {
		if strings.EqualFold(s, n) {
			return Facet(i), nil
		}
	}
	return 0, fmt.Errorf("unknown facet %q", s)
}

// CopySemantics decides how a modifier is placed into another aggregator.
type CopySemantics int

const (
	// Link keeps an observing reference; the target follows live changes.
	Link CopySemantics = iota
	// Snapshot stores an owned, independent copy.
	Snapshot
)

func (c CopySemantics) String() string {
	if c == Snapshot {
		return "snapshot"
	}
	return "link"
}

// CopyPolicy is a modifier's authored override of the default semantics.
type CopyPolicy int

const (
	CopyDefault CopyPolicy = iota
	CopyAlwaysSnapshot
	CopyAlwaysLink
)

func ParseCopyPolicy(s string) (CopyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return CopyDefault, nil
	case "always_snapshot", "snapshot":
		return CopyAlwaysSnapshot, nil
	case "always_link", "link":
		return CopyAlwaysLink, nil
	}
	return 0, fmt.Errorf("unknown copy policy %q", s)
}

// StackingPolicy resolves several active effects competing for one slot.
type StackingPolicy int

const (
	StackUnlimited StackingPolicy = iota
	StackHighest
	StackLowest
	StackReplaces
	StackCallback
)

var stackingNames = [...]string{"unlimited", "highest", "lowest", "replaces", "callback"}

func (p StackingPolicy) String() string {
	if p < 0 || int(p) >= len(stackingNames) {
		return fmt.Sprintf("StackingPolicy(%d)", int(p))
	}
	return stackingNames[p]
}

func ParseStackingPolicy(s string) (StackingPolicy, error) {
	if s == "" {
		return StackUnlimited, nil
	}
	for i, n := range stackingNames {
		if strings.EqualFold(s, n) {
			return StackingPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stacking policy %q", s)
}

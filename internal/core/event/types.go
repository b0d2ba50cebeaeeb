package event

import "github.com/l1jgo/skillsys/internal/core/ecs"

// Effect lifecycle events. Handle values are per-target active effect
// handles; they are only meaningful together with Target.

type EffectApplied struct {
	Target ecs.EntityID
	Handle int64
	Effect string
}

type EffectExecuted struct {
	Target ecs.EntityID
	Handle int64
	Effect string
}

type EffectRemoved struct {
	Target  ecs.EntityID
	Handle  int64
	Effect  string
	Expired bool
}

// EffectStackingChanged reports an effect joining or leaving the set of
// contributing stack members.
type EffectStackingChanged struct {
	Target       ecs.EntityID
	Handle       int64
	Effect       string
	Contributing bool
}

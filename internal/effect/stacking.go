package effect

import (
	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/core/event"
)

// stackKey groups effects competing for one slot: effects naming the same
// stacked slot under the same policy, or otherwise instances of the same
// definition.
type stackKey struct {
	policy StackingPolicy
	name   string
	def    *Definition
}

// RecalculateStacking picks one contributing member per stacking group and
// detaches the rest. Detached members stay active and keep their timers.
func (c *Container) RecalculateStacking() {
	var order []stackKey
	groups := make(map[stackKey][]*ActiveEffect)
	for _, e := range c.effects {
		if e.Spec.StackingPolicy == StackUnlimited {
			continue
		}
		key := stackKey{policy: e.Spec.StackingPolicy, name: e.Spec.StackedName}
		if key.name == "" {
			key.def = e.Spec.Def
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	for _, key := range order {
		members := groups[key]
		winner := c.stackingWinner(key.policy, members)
		// detach losers first so the winner never shares the slot
		for _, e := range members {
			if e != winner && e.contributing {
				c.detach(e)
				c.emitStacking(e)
			}
		}
		if !winner.contributing {
			c.attach(winner)
			c.emitStacking(winner)
		}
	}
}

func (c *Container) stackingWinner(policy StackingPolicy, members []*ActiveEffect) *ActiveEffect {
	switch policy {
	case StackHighest, StackLowest:
		mags := make(map[*ActiveEffect]float64, len(members))
		for _, e := range members {
			mags[e] = e.Spec.StackingMagnitude()
		}
		return pick(members, func(a, b *ActiveEffect) bool {
			if mags[a] != mags[b] {
				if policy == StackHighest {
					return mags[a] > mags[b]
				}
				return mags[a] < mags[b]
			}
			return admittedBefore(a, b)
		})
	case StackCallback:
		if w := c.callbackWinner(members); w != nil {
			return w
		}
	}
	return pick(members, func(a, b *ActiveEffect) bool { return admittedBefore(b, a) })
}

func (c *Container) callbackWinner(members []*ActiveEffect) *ActiveEffect {
	def := members[0].Spec.Def
	ext := def.StackingExtension
	if ext == nil {
		c.log.Warn("callback stacking without extension, using replaces", zap.String("effect", def.Name))
		return nil
	}
	candidates := make([]StackingCandidate, len(members))
	for i, e := range members {
		candidates[i] = StackingCandidate{
			Handle:         e.Handle,
			Effect:         e.Spec.Def.Name,
			Magnitude:      e.Spec.StackingMagnitude(),
			StartWorldTime: e.StartWorldTime,
		}
	}
	h := ext.SelectStackingWinner(candidates)
	for _, e := range members {
		if e.Handle == h {
			return e
		}
	}
	c.log.Warn("stacking extension chose no candidate, using replaces",
		zap.String("effect", def.Name),
		zap.String("extension", ext.ID()),
		zap.Stringer("handle", h))
	return nil
}

func (c *Container) emitStacking(e *ActiveEffect) {
	c.log.Debug("stacking changed",
		zap.Stringer("handle", e.Handle),
		zap.String("effect", e.Spec.Def.Name),
		zap.Bool("contributing", e.contributing))
	if c.bus != nil {
		event.Emit(c.bus, event.EffectStackingChanged{
			Target:       c.owner,
			Handle:       int64(e.Handle),
			Effect:       e.Spec.Def.Name,
			Contributing: e.contributing,
		})
	}
}

// admittedBefore orders by start time, then by handle.
func admittedBefore(a, b *ActiveEffect) bool {
	if a.StartWorldTime != b.StartWorldTime {
		return a.StartWorldTime < b.StartWorldTime
	}
	return a.Handle < b.Handle
}

func pick(members []*ActiveEffect, better func(a, b *ActiveEffect) bool) *ActiveEffect {
	best := members[0]
	for _, e := range members[1:] {
		if better(e, best) {
			best = e
		}
	}
	return best
}

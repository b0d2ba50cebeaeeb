package system

import (
	"time"

	"github.com/l1jgo/skillsys/internal/core/ecs"
	coresys "github.com/l1jgo/skillsys/internal/core/system"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/world"
)

// EffectTickSystem advances every effect container by the tick length:
// periodic executions, expiry, stacking and attribute flush.
// Phase 2 (Update).
type EffectTickSystem struct {
	world *world.State
}

func NewEffectTickSystem(ws *world.State) *EffectTickSystem {
	return &EffectTickSystem{world: ws}
}

func (s *EffectTickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *EffectTickSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	s.world.Containers.Each(func(_ ecs.EntityID, c *effect.Container) {
		c.Tick(secs)
	})
}

package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/skillsys/internal/core/system"
	"github.com/l1jgo/skillsys/internal/data"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/world"
)

// ScenarioSystem spawns the scenario's actors and replays its scheduled
// actions against the world as simulated time passes. Phase 0 (Input).
type ScenarioSystem struct {
	world   *world.State
	effects *data.EffectTable
	actions []data.Action
	next    int
	elapsed float64 // seconds
	eps     float64
	log     *zap.Logger
}

// NewScenarioSystem spawns every actor of sc into ws. Actions must already
// be validated against effects.
func NewScenarioSystem(ws *world.State, effects *data.EffectTable, sc *data.Scenario, eps float64, log *zap.Logger) (*ScenarioSystem, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, a := range sc.Actors {
		if _, err := ws.Spawn(a.Name, a.Attributes, a.Tags); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", a.Name, err)
		}
	}
	return &ScenarioSystem{
		world:   ws,
		effects: effects,
		actions: sc.Actions,
		eps:     eps,
		log:     log,
	}, nil
}

func (s *ScenarioSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Update runs every action due at the current time, then advances the clock.
func (s *ScenarioSystem) Update(dt time.Duration) {
	for s.next < len(s.actions) && s.actions[s.next].At <= s.elapsed+s.eps {
		s.run(s.actions[s.next])
		s.next++
	}
	s.elapsed += dt.Seconds()
}

// Done reports whether every action has run.
func (s *ScenarioSystem) Done() bool { return s.next >= len(s.actions) }

// Elapsed returns the simulated seconds since start.
func (s *ScenarioSystem) Elapsed() float64 { return s.elapsed }

func (s *ScenarioSystem) run(a data.Action) {
	switch a.Kind {
	case data.ActionApply:
		s.apply(a)
	case data.ActionRemove:
		s.remove(a)
	case data.ActionDestroy:
		id, ok := s.world.Lookup(a.Target)
		if !ok {
			s.log.Warn("destroy: actor not found", zap.String("actor", a.Target))
			return
		}
		s.world.Destroy(id)
		s.log.Info("actor destroyed", zap.String("actor", a.Target), zap.Float64("at", a.At))
	}
}

func (s *ScenarioSystem) apply(a data.Action) {
	def := s.effects.Get(a.Effect)
	inst, ok := s.world.Lookup(a.Instigator)
	if !ok {
		s.log.Warn("apply: instigator not found", zap.String("actor", a.Instigator), zap.String("effect", a.Effect))
		return
	}
	target, ok := s.world.Lookup(a.Target)
	if !ok {
		s.log.Warn("apply: target not found", zap.String("actor", a.Target), zap.String("effect", a.Effect))
		return
	}
	tc, _ := s.world.Container(target)

	spec := effect.NewEffectSpec(def, a.Level, s.world.Instigator(inst), s.log)
	defer spec.Release()
	if ic, ok := s.world.Container(inst); ok {
		ic.PrepareOutgoing(spec)
	}

	h, err := tc.ApplySpec(spec, effect.NewQualifier())
	if err != nil {
		s.log.Info("effect not applied",
			zap.String("effect", a.Effect),
			zap.String("instigator", a.Instigator),
			zap.String("target", a.Target),
			zap.Error(err))
		return
	}
	s.log.Debug("effect applied",
		zap.String("effect", a.Effect),
		zap.String("instigator", a.Instigator),
		zap.String("target", a.Target),
		zap.Stringer("handle", h),
		zap.Float64("level", a.Level))
}

func (s *ScenarioSystem) remove(a data.Action) {
	target, ok := s.world.Lookup(a.Target)
	if !ok {
		s.log.Warn("remove: target not found", zap.String("actor", a.Target), zap.String("effect", a.Effect))
		return
	}
	tc, _ := s.world.Container(target)
	n := 0
	for _, h := range tc.Handles() {
		e, ok := tc.Effect(h)
		if ok && e.Spec.Def.Name == a.Effect && tc.RemoveEffect(h) {
			n++
		}
	}
	s.log.Debug("effect removed", zap.String("effect", a.Effect), zap.String("target", a.Target), zap.Int("count", n))
}

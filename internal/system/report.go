package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/core/ecs"
	"github.com/l1jgo/skillsys/internal/core/event"
	coresys "github.com/l1jgo/skillsys/internal/core/system"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/world"
)

// ReportStats counts delivered effect events.
type ReportStats struct {
	Applied       int
	Executed      int
	Removed       int
	Expired       int
	StackingFlips int
}

// ReportSystem logs effect events as they are delivered and every actor's
// attribute values every N ticks. Phase 3 (PostUpdate).
type ReportSystem struct {
	world     *world.State
	every     int
	tickCount int
	stats     ReportStats
	log       *zap.Logger
}

// NewReportSystem subscribes to the effect events on ws.Bus. every <= 0
// disables the periodic attribute report.
func NewReportSystem(ws *world.State, every int, log *zap.Logger) *ReportSystem {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ReportSystem{world: ws, every: every, log: log}

	event.Subscribe(ws.Bus, func(e event.EffectApplied) {
		s.stats.Applied++
		s.log.Debug("effect applied", s.fields(e.Target, e.Handle, e.Effect)...)
	})
	event.Subscribe(ws.Bus, func(e event.EffectExecuted) {
		s.stats.Executed++
		s.log.Debug("effect executed", s.fields(e.Target, e.Handle, e.Effect)...)
	})
	event.Subscribe(ws.Bus, func(e event.EffectRemoved) {
		s.stats.Removed++
		if e.Expired {
			s.stats.Expired++
		}
		s.log.Debug("effect removed", append(s.fields(e.Target, e.Handle, e.Effect), zap.Bool("expired", e.Expired))...)
	})
	event.Subscribe(ws.Bus, func(e event.EffectStackingChanged) {
		s.stats.StackingFlips++
		s.log.Debug("stacking changed", append(s.fields(e.Target, e.Handle, e.Effect), zap.Bool("contributing", e.Contributing))...)
	})
	return s
}

func (s *ReportSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ReportSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.every <= 0 || s.tickCount%s.every != 0 {
		return
	}
	s.Report()
}

// Stats returns the event counts delivered so far.
func (s *ReportSystem) Stats() ReportStats { return s.stats }

// Report logs the current attribute values and effect count of every actor.
func (s *ReportSystem) Report() {
	s.world.AllActors(func(name string, _ ecs.EntityID, c *effect.Container, set *attribute.Set) {
		fields := []zap.Field{
			zap.String("actor", name),
			zap.Int("tick", s.tickCount),
			zap.Int("effects", c.NumEffects()),
		}
		for _, attr := range set.Attributes() {
			fields = append(fields, zap.Float64(string(attr), set.Value(attr)))
		}
		s.log.Info("actor attributes", fields...)
	})
}

func (s *ReportSystem) fields(target ecs.EntityID, h int64, name string) []zap.Field {
	return []zap.Field{
		zap.String("actor", s.world.Name(target)),
		zap.Int64("handle", h),
		zap.String("effect", name),
	}
}

package effect

import (
	"context"
	"strconv"

	"github.com/looplab/fsm"
)

// Handle identifies an active effect within one container. Handles start
// at 1, only grow, and are never reissued.
type Handle int64

const InvalidHandle Handle = 0

func (h Handle) IsValid() bool  { return h != InvalidHandle }
func (h Handle) String() string { return strconv.FormatInt(int64(h), 10) }

// Lifecycle states of an active effect. Removal is terminal.
const (
	StateAdmitted  = "admitted"
	StateTicking   = "ticking"
	StateExecuting = "executing"
	StateRemoved   = "removed"
)

const (
	evStart   = "start"
	evExecute = "execute"
	evSettle  = "settle"
	evRemove  = "remove"
)

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(StateAdmitted, fsm.Events{
		{Name: evStart, Src: []string{StateAdmitted}, Dst: StateTicking},
		{Name: evExecute, Src: []string{StateTicking}, Dst: StateExecuting},
		{Name: evSettle, Src: []string{StateExecuting}, Dst: StateTicking},
		{Name: evRemove, Src: []string{StateAdmitted, StateTicking, StateExecuting}, Dst: StateRemoved},
	}, fsm.Callbacks{})
}

// ActiveEffect is a spec admitted into a container.
type ActiveEffect struct {
	Handle          Handle
	Spec            *EffectSpec
	StartGameTime   int64
	StartWorldTime  float64
	NextExecuteTime float64

	contributing bool
	lifecycle    *fsm.FSM
}

func newActiveEffect(h Handle, spec *EffectSpec, gameTime int64, worldTime float64) *ActiveEffect {
	e := &ActiveEffect{
		Handle:         h,
		Spec:           spec,
		StartGameTime:  gameTime,
		StartWorldTime: worldTime,
		lifecycle:      newLifecycle(),
	}
	if p := spec.Period(); p > NoPeriod {
		e.NextExecuteTime = worldTime + p
	}
	return e
}

func (e *ActiveEffect) State() string      { return e.lifecycle.Current() }
func (e *ActiveEffect) IsRemoved() bool    { return e.lifecycle.Is(StateRemoved) }
func (e *ActiveEffect) Contributing() bool { return e.contributing }

func (e *ActiveEffect) fire(event string) error {
	return e.lifecycle.Event(context.Background(), event)
}

// ExpiresAt returns the world time the effect ends, or false when it never does.
func (e *ActiveEffect) ExpiresAt() (float64, bool) {
	d := e.Spec.Duration()
	if d == InfiniteDuration {
		return 0, false
	}
	return e.StartWorldTime + d, true
}

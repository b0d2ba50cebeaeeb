package system

import "time"

// Phase orders systems within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // scheduled applications enter the world
	PhasePreUpdate               // deliver last tick's events
	PhaseUpdate                  // effect clocks advance
	PhasePostUpdate              // observers read settled attribute values
	PhaseCleanup                 // destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is implemented by everything the Runner drives.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

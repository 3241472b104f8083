package scaling

import "fmt"

// Action represents a scaling decision action.
type Action string

const (
	// ActionScaleUp indicates a parallel worker should be started.
	ActionScaleUp Action = "scale_up"

	// ActionScaleDown indicates a parallel worker should stop after its
	// in-flight vote.
	ActionScaleDown Action = "scale_down"

	// ActionNone indicates no scaling change is needed.
	ActionNone Action = "none"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Decision is the result of evaluating the scaling rules for one parallel
// worker slot.
type Decision struct {
	// Action is the recommended scaling action.
	Action Action

	// Slot is the 1-based parallel worker index the decision applies to.
	Slot int

	// Behind is the consecutive-behind count the decision was made at.
	Behind int

	// Reason is a human-readable explanation of the decision.
	Reason string
}

// SlotState tracks the lifecycle of one parallel worker slot.
//
//	Inactive -> Starting -> Running -> StoppingRequested -> Stopped -> Starting ...
type SlotState int

const (
	// SlotInactive means the slot has never been used.
	SlotInactive SlotState = iota
	// SlotStarting means a worker was requested but has not begun its loop.
	SlotStarting
	// SlotRunning means the worker is voting.
	SlotRunning
	// SlotStoppingRequested means the worker will exit after its current vote.
	SlotStoppingRequested
	// SlotStopped means the worker has exited.
	SlotStopped
)

// String returns the state name.
func (s SlotState) String() string {
	switch s {
	case SlotInactive:
		return "inactive"
	case SlotStarting:
		return "starting"
	case SlotRunning:
		return "running"
	case SlotStoppingRequested:
		return "stopping"
	case SlotStopped:
		return "stopped"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// CanStart reports whether a worker may be started in this slot.
func (s SlotState) CanStart() bool {
	return s == SlotInactive || s == SlotStopped
}

// Active reports whether the slot holds a worker that counts toward the
// active thread count.
func (s SlotState) Active() bool {
	return s == SlotStarting || s == SlotRunning || s == SlotStoppingRequested
}

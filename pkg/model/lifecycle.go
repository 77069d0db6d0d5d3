package model

import "fmt"

// LifecycleState describes where a managed object sits in its attachment to
// (or detachment from) a management context. Transitions are externally
// driven by the rebind driver or the object managers; an object never
// self-transitions.
type LifecycleState string

const (
	// StatePreManagement indicates the object exists but has never been
	// attached to a management context.
	StatePreManagement LifecycleState = "pre-management"

	// StateRebinding indicates the object is being restored from a
	// persisted snapshot and is not yet live.
	StateRebinding LifecycleState = "rebinding"

	// StateStarting indicates attachment to a real management context is
	// in progress.
	StateStarting LifecycleState = "starting"

	// StateStarted is the only state in which the object's real management
	// context may be used directly.
	StateStarted LifecycleState = "started"

	// StateStopping indicates detachment is in progress.
	StateStopping LifecycleState = "stopping"

	// StateStopped indicates the object has been detached and will not be
	// managed again by this process.
	StateStopped LifecycleState = "stopped"
)

// IsNotYetLive returns true for the states before an object has ever been
// attached to a real management context.
func (s LifecycleState) IsNotYetLive() bool {
	return s == StatePreManagement || s == StateRebinding
}

// IsLive returns true if the object's real management context may be used
// directly.
func (s LifecycleState) IsLive() bool {
	return s == StateStarted
}

// IsTerminal returns true if no further transitions are expected.
func (s LifecycleState) IsTerminal() bool {
	return s == StateStopped
}

// Validate checks that the state is one of the known lifecycle states.
func (s LifecycleState) Validate() error {
	switch s {
	case StatePreManagement, StateRebinding, StateStarting,
		StateStarted, StateStopping, StateStopped:
		return nil
	default:
		return fmt.Errorf("invalid lifecycle state: %q", string(s))
	}
}

// lifecycleOrder gives the forward progression of states. A transition is
// legal if it moves forward in this order; Rebinding is only reachable from
// PreManagement.
var lifecycleOrder = map[LifecycleState]int{
	StatePreManagement: 0,
	StateRebinding:     1,
	StateStarting:      2,
	StateStarted:       3,
	StateStopping:      4,
	StateStopped:       5,
}

// CanTransition reports whether moving from s to next is a legal forward
// transition.
func (s LifecycleState) CanTransition(next LifecycleState) bool {
	from, ok := lifecycleOrder[s]
	if !ok {
		return false
	}
	to, ok := lifecycleOrder[next]
	if !ok {
		return false
	}
	return to > from
}

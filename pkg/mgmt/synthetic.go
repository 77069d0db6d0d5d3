package mgmt

import "github.com/openmast/openmast/pkg/ha"

// syntheticRebindManager is the rebind accessor a facade hands out while no
// real context is attached. It is fully self-contained: its answers never
// recurse into the attached context, so early-startup code asking "am I
// read-only?" gets a sensible answer instead of an error.
type syntheticRebindManager struct{}

// IsReadOnly always reports true: an object without a real context must
// not mutate anything.
func (syntheticRebindManager) IsReadOnly() bool { return true }

// IsAwaitingInitialRebind always reports true before a real context is
// attached.
func (syntheticRebindManager) IsAwaitingInitialRebind() bool { return true }

// syntheticHAManager is the HA accessor a facade hands out while no real
// context is attached.
type syntheticHAManager struct{}

// NodeState always reports initializing.
func (syntheticHAManager) NodeState() ha.NodeState { return ha.NodeStateInitializing }

// IsMaster always reports false.
func (syntheticHAManager) IsMaster() bool { return false }

// Package ha defines the high-availability collaborator contract consumed
// by the management plane: which node state this process is in and whether
// it currently holds mastership. The election protocol itself lives
// elsewhere.
package ha

import (
	"fmt"
	"sync"
)

// NodeState is the HA state of one management node.
type NodeState string

const (
	// NodeStateInitializing indicates the node has not yet joined the HA
	// plane. Synthetic managers report this state during early startup.
	NodeStateInitializing NodeState = "initializing"

	// NodeStateStandby indicates the node is a hot standby, read-only.
	NodeStateStandby NodeState = "standby"

	// NodeStateMaster indicates the node holds mastership and may mutate
	// the managed graph.
	NodeStateMaster NodeState = "master"

	// NodeStateFailed indicates the node has failed its health checks.
	NodeStateFailed NodeState = "failed"

	// NodeStateTerminated indicates the node has left the HA plane.
	NodeStateTerminated NodeState = "terminated"
)

// Validate checks that the node state is one of the known states.
func (s NodeState) Validate() error {
	switch s {
	case NodeStateInitializing, NodeStateStandby, NodeStateMaster,
		NodeStateFailed, NodeStateTerminated:
		return nil
	default:
		return fmt.Errorf("invalid node state: %q", string(s))
	}
}

// Monitor is the narrow contract the management plane consumes from the HA
// subsystem.
type Monitor interface {
	// CurrentNodeState returns the node's HA state.
	CurrentNodeState() NodeState

	// IsMaster returns true if this node currently holds mastership.
	IsMaster() bool
}

// StaticMonitor is an in-memory Monitor whose state is set directly. The
// local management context uses it when no external HA plane is wired in.
type StaticMonitor struct {
	mu    sync.RWMutex
	state NodeState
}

// NewStaticMonitor creates a monitor in the given state.
func NewStaticMonitor(state NodeState) *StaticMonitor {
	return &StaticMonitor{state: state}
}

// SetState moves the monitor to a new state.
func (m *StaticMonitor) SetState(state NodeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// CurrentNodeState returns the node's HA state.
func (m *StaticMonitor) CurrentNodeState() NodeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsMaster returns true if the monitor is in the master state.
func (m *StaticMonitor) IsMaster() bool {
	return m.CurrentNodeState() == NodeStateMaster
}

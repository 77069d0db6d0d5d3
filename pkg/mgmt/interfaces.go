package mgmt

import (
	"context"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/ha"
	"github.com/openmast/openmast/pkg/model"
)

// ManagementContext is the full management surface a managed object sees.
// Exactly one real implementation exists per process
// (LocalManagementContext); objects that are not yet, or no longer,
// attached to it see a DeferredManagementContext instead.
type ManagementContext interface {
	// IsReal returns true for a live backing context and false for a
	// lifecycle facade. Delegation checks this before forwarding.
	IsReal() bool

	// IsRunning returns true while the context accepts operations.
	IsRunning() bool

	// SubmitTask submits work to the execution engine on behalf of an
	// object.
	SubmitTask(ctx context.Context, task *exec.Task) (*exec.TaskHandle, error)

	// RebindManager returns the rebind subsystem accessor.
	RebindManager() RebindManager

	// HighAvailabilityManager returns the HA subsystem accessor.
	HighAvailabilityManager() HighAvailabilityManager

	// Catalog returns the type-registry collaborator.
	Catalog() (catalog.TypeRegistry, error)

	// Lookup resolves a managed-object ID to its current live delegate.
	Lookup(id string) (model.ManagedObject, error)

	// Subscribe registers interest in events published against an object.
	Subscribe(req SubscriptionRequest) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// PreRegister announces an object that is about to come under
	// management. Arriving twice for the same object is harmless.
	PreRegister(obj model.ManagedObject) error

	// RequestPersist asks the persistence layer to snapshot soon.
	RequestPersist(reason string) error
}

// RebindManager exposes the rebind subsystem state an object may query.
type RebindManager interface {
	// IsReadOnly returns true while the node must not mutate the graph.
	IsReadOnly() bool

	// IsAwaitingInitialRebind returns true before the first rebind of
	// this process has completed.
	IsAwaitingInitialRebind() bool
}

// HighAvailabilityManager exposes the HA subsystem state an object may
// query.
type HighAvailabilityManager interface {
	// NodeState returns this node's HA state.
	NodeState() ha.NodeState

	// IsMaster returns true if this node holds mastership.
	IsMaster() bool
}

// SubscriptionRequest asks to be notified of events on one object.
type SubscriptionRequest struct {
	// ObjectID is the managed object to watch, "" for all.
	ObjectID string

	// Topic is the event topic, e.g. a sensor name.
	Topic string

	// Handler receives each matching event.
	Handler func(event any)
}

// SubscriptionID identifies one registered subscription.
type SubscriptionID string

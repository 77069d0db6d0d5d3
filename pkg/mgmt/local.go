package mgmt

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/ha"
	"github.com/openmast/openmast/pkg/model"
)

// LocalManagementContext is the real, in-process management context. It
// owns the handle registry for the live graph and fronts the execution, HA,
// and catalog collaborators.
type LocalManagementContext struct {
	logger   zerolog.Logger
	registry *model.Registry
	executor exec.Submitter
	types    catalog.TypeRegistry
	monitor  ha.Monitor

	// OnPersistRequested, if set, is invoked for every RequestPersist.
	OnPersistRequested func(reason string)

	mu            sync.Mutex
	running       bool
	readOnly      bool
	awaitingFirst bool
	preRegistered map[string]struct{}
	subs          map[SubscriptionID]SubscriptionRequest
}

// LocalContextDeps carries the collaborators a local context fronts.
type LocalContextDeps struct {
	// Registry is the handle registry for the live graph. A fresh one is
	// created when nil.
	Registry *model.Registry

	// Executor is the execution collaborator. Required.
	Executor exec.Submitter

	// Types is the catalog type registry. Required.
	Types catalog.TypeRegistry

	// Monitor is the HA collaborator. Defaults to a static master monitor.
	Monitor ha.Monitor

	// Logger is the base logger.
	Logger zerolog.Logger
}

// NewLocalManagementContext creates a running local context.
func NewLocalManagementContext(deps LocalContextDeps) (*LocalManagementContext, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if deps.Types == nil {
		return nil, fmt.Errorf("type registry is required")
	}
	if deps.Registry == nil {
		deps.Registry = model.NewRegistry()
	}
	if deps.Monitor == nil {
		deps.Monitor = ha.NewStaticMonitor(ha.NodeStateMaster)
	}

	return &LocalManagementContext{
		logger:        deps.Logger.With().Str("component", "mgmt-context").Logger(),
		registry:      deps.Registry,
		executor:      deps.Executor,
		types:         deps.Types,
		monitor:       deps.Monitor,
		running:       true,
		awaitingFirst: true,
		preRegistered: make(map[string]struct{}),
		subs:          make(map[SubscriptionID]SubscriptionRequest),
	}, nil
}

// IsReal returns true: this is the live backing context.
func (m *LocalManagementContext) IsReal() bool { return true }

// IsRunning returns true until the context is destroyed.
func (m *LocalManagementContext) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Registry returns the handle registry for the live graph.
func (m *LocalManagementContext) Registry() *model.Registry { return m.registry }

// SubmitTask submits work to the execution collaborator.
func (m *LocalManagementContext) SubmitTask(ctx context.Context, task *exec.Task) (*exec.TaskHandle, error) {
	if !m.IsRunning() {
		return nil, fmt.Errorf("management context is not running")
	}
	return m.executor.Submit(ctx, task)
}

// RebindManager returns the local rebind state.
func (m *LocalManagementContext) RebindManager() RebindManager {
	return &localRebindManager{ctx: m}
}

// HighAvailabilityManager returns the HA state backed by the monitor.
func (m *LocalManagementContext) HighAvailabilityManager() HighAvailabilityManager {
	return &localHAManager{monitor: m.monitor}
}

// Catalog returns the type-registry collaborator.
func (m *LocalManagementContext) Catalog() (catalog.TypeRegistry, error) {
	return m.types, nil
}

// Lookup resolves a managed-object ID through the handle registry.
func (m *LocalManagementContext) Lookup(id string) (model.ManagedObject, error) {
	obj, ok := m.registry.Lookup(id)
	if !ok {
		return nil, NewUnresolvedReferenceError("object", id)
	}
	return obj, nil
}

// Subscribe registers an event subscription.
func (m *LocalManagementContext) Subscribe(req SubscriptionRequest) (SubscriptionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return "", fmt.Errorf("management context is not running")
	}
	id := SubscriptionID(uuid.New().String())
	m.subs[id] = req
	return id, nil
}

// Unsubscribe removes a subscription.
func (m *LocalManagementContext) Unsubscribe(id SubscriptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return fmt.Errorf("subscription not found: %s", id)
	}
	delete(m.subs, id)
	return nil
}

// Publish delivers an event to every matching subscription.
func (m *LocalManagementContext) Publish(objectID, topic string, event any) {
	m.mu.Lock()
	handlers := make([]func(any), 0, len(m.subs))
	for _, req := range m.subs {
		if req.ObjectID != "" && req.ObjectID != objectID {
			continue
		}
		if req.Topic != "" && req.Topic != topic {
			continue
		}
		if req.Handler != nil {
			handlers = append(handlers, req.Handler)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriptionCount returns the number of registered subscriptions.
func (m *LocalManagementContext) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// PreRegister announces an object about to come under management. A repeat
// for the same object is a warned no-op.
func (m *LocalManagementContext) PreRegister(obj model.ManagedObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.preRegistered[obj.ID()]; ok {
		m.logger.Warn().Str("object", obj.ID()).
			Msg("object already pre-registered for management, ignoring")
		return nil
	}
	m.preRegistered[obj.ID()] = struct{}{}
	return nil
}

// Manage binds an object into the live graph and flips it to started.
func (m *LocalManagementContext) Manage(obj model.ManagedObject) (model.Handle, error) {
	if !m.IsRunning() {
		return "", fmt.Errorf("management context is not running")
	}
	h := m.registry.Swap(obj)
	obj.SetState(model.StateStarted)
	m.mu.Lock()
	delete(m.preRegistered, obj.ID())
	m.mu.Unlock()
	return h, nil
}

// RequestPersist asks the persistence layer to snapshot soon.
func (m *LocalManagementContext) RequestPersist(reason string) error {
	if !m.IsRunning() {
		return fmt.Errorf("management context is not running")
	}
	m.logger.Debug().Str("reason", reason).Msg("persistence requested")
	if m.OnPersistRequested != nil {
		m.OnPersistRequested(reason)
	}
	return nil
}

// SetReadOnly flips the node's read-only flag, e.g. while running as a hot
// standby.
func (m *LocalManagementContext) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
}

// RebindComplete records that the initial rebind of this process finished.
func (m *LocalManagementContext) RebindComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awaitingFirst = false
}

// localRebindManager reports the local context's rebind state.
type localRebindManager struct {
	ctx *LocalManagementContext
}

func (r *localRebindManager) IsReadOnly() bool {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.ctx.readOnly
}

func (r *localRebindManager) IsAwaitingInitialRebind() bool {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.ctx.awaitingFirst
}

// localHAManager reports HA state straight from the monitor.
type localHAManager struct {
	monitor ha.Monitor
}

func (h *localHAManager) NodeState() ha.NodeState { return h.monitor.CurrentNodeState() }

func (h *localHAManager) IsMaster() bool { return h.monitor.IsMaster() }

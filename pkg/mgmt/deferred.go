package mgmt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/model"
	"github.com/openmast/openmast/pkg/telemetry"
)

// DeferredManagementContext is the lifecycle facade: the stand-in
// management context bound to exactly one managed object while that object
// is not attached to a real context (before management, during rebind, or
// after stop).
//
// Every method falls into one of four buckets:
//
//   - always safe, always local: subscription queueing and bookkeeping that
//     needs no live backing context
//   - no-op with a warning: harmless repeats such as a duplicate
//     PreRegister
//   - delegate if a real context is attached, otherwise fail with a
//     not-real-context error naming the object and operation
//   - state-dependent synthetic behavior: RebindManager and
//     HighAvailabilityManager return self-contained synthetic
//     implementations instead of failing
type DeferredManagementContext struct {
	obj    model.ManagedObject
	logger zerolog.Logger

	mu            sync.Mutex
	real          ManagementContext
	preRegistered bool
	queued        []queuedSubscription

	// replayed maps IDs handed out while queueing to the IDs the real
	// context issued during replay, so pre-attach IDs stay usable.
	replayed map[SubscriptionID]SubscriptionID
}

// queuedSubscription is a subscription request held for replay until a real
// context is attached.
type queuedSubscription struct {
	id  SubscriptionID
	req SubscriptionRequest
}

// NewDeferredManagementContext creates the facade for one object.
func NewDeferredManagementContext(obj model.ManagedObject, logger zerolog.Logger) *DeferredManagementContext {
	return &DeferredManagementContext{
		obj: obj,
		logger: logger.With().
			Str("component", "deferred-mgmt-context").
			Str("object", obj.ID()).
			Logger(),
	}
}

// IsReal always returns false: the facade is never a real context, even
// after one is attached behind it.
func (d *DeferredManagementContext) IsReal() bool { return false }

// IsRunning delegates when a real context is attached and reports false
// otherwise.
func (d *DeferredManagementContext) IsRunning() bool {
	real := d.attached()
	if real != nil {
		return real.IsRunning()
	}
	return false
}

// SetManagementContext attaches the real context. Queued subscription
// requests are replayed in FIFO order; a replay failure is logged per
// subscription and does not fail the attach. Passing another facade is
// rejected.
func (d *DeferredManagementContext) SetManagementContext(real ManagementContext) error {
	if real == nil || !real.IsReal() {
		return NewInternalError("refusing to attach a non-real management context", nil).
			WithObject(d.obj.ID()).
			WithOperation("SetManagementContext")
	}

	d.mu.Lock()
	d.real = real
	queued := d.queued
	d.queued = nil
	d.mu.Unlock()

	replayed := make(map[SubscriptionID]SubscriptionID, len(queued))
	for _, q := range queued {
		realID, err := real.Subscribe(q.req)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("topic", q.req.Topic).
				Msg("failed to replay queued subscription")
			continue
		}
		replayed[q.id] = realID
	}

	d.mu.Lock()
	d.replayed = replayed
	d.mu.Unlock()
	return nil
}

// ClearManagementContext detaches the real context, e.g. when the object is
// being unmanaged.
func (d *DeferredManagementContext) ClearManagementContext() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.real = nil
}

// attached returns the real context if one is attached, nil otherwise.
func (d *DeferredManagementContext) attached() ManagementContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.real
}

// delegate returns the attached real context or a not-real-context error
// naming the object and operation. Once a real context is attached,
// delegation succeeds regardless of lifecycle state; rejecting post-stop
// operations is the real context's responsibility.
func (d *DeferredManagementContext) delegate(operation string) (ManagementContext, error) {
	real := d.attached()
	if real == nil {
		d.logger.Debug().
			Str("operation", operation).
			Str("state", string(d.obj.State())).
			Msg("delegate operation rejected: no real context attached")
		return nil, NewNotRealContextError(d.obj.ID(), operation)
	}
	return real, nil
}

// SubmitTask delegates to the real context or fails.
func (d *DeferredManagementContext) SubmitTask(ctx context.Context, task *exec.Task) (*exec.TaskHandle, error) {
	real, err := d.delegate("SubmitTask")
	if err != nil {
		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			tel.Metrics.RecordFacadeRejection("SubmitTask")
		}
		return nil, err
	}
	return real.SubmitTask(ctx, task)
}

// Catalog delegates to the real context or fails.
func (d *DeferredManagementContext) Catalog() (catalog.TypeRegistry, error) {
	real, err := d.delegate("Catalog")
	if err != nil {
		return nil, err
	}
	return real.Catalog()
}

// Lookup delegates to the real context or fails.
func (d *DeferredManagementContext) Lookup(id string) (model.ManagedObject, error) {
	real, err := d.delegate("Lookup")
	if err != nil {
		return nil, err
	}
	return real.Lookup(id)
}

// RequestPersist delegates to the real context or fails.
func (d *DeferredManagementContext) RequestPersist(reason string) error {
	real, err := d.delegate("RequestPersist")
	if err != nil {
		return err
	}
	return real.RequestPersist(reason)
}

// Subscribe delegates when a real context is attached; otherwise the
// request is queued locally for replay on attach. Queueing needs no live
// backing context, so it is always safe.
func (d *DeferredManagementContext) Subscribe(req SubscriptionRequest) (SubscriptionID, error) {
	d.mu.Lock()
	if d.real != nil {
		real := d.real
		d.mu.Unlock()
		return real.Subscribe(req)
	}
	id := SubscriptionID(uuid.New().String())
	d.queued = append(d.queued, queuedSubscription{id: id, req: req})
	d.mu.Unlock()

	d.logger.Debug().
		Str("topic", req.Topic).
		Msg("subscription queued for replay on attach")
	return id, nil
}

// Unsubscribe removes a queued subscription locally, or delegates once a
// real context is attached. An ID handed out while queueing is translated
// to the ID the real context issued during replay.
func (d *DeferredManagementContext) Unsubscribe(id SubscriptionID) error {
	d.mu.Lock()
	for i, q := range d.queued {
		if q.id == id {
			d.queued = append(d.queued[:i], d.queued[i+1:]...)
			d.mu.Unlock()
			return nil
		}
	}
	if realID, ok := d.replayed[id]; ok {
		delete(d.replayed, id)
		id = realID
	}
	real := d.real
	d.mu.Unlock()

	if real == nil {
		return NewNotRealContextError(d.obj.ID(), "Unsubscribe")
	}
	return real.Unsubscribe(id)
}

// PreRegister records that the object is about to come under management.
// A duplicate call is harmless: warn and carry on.
func (d *DeferredManagementContext) PreRegister(obj model.ManagedObject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.preRegistered {
		d.logger.Warn().Msg("object already pre-registered for management, ignoring")
		return nil
	}
	d.preRegistered = true
	return nil
}

// QueuedSubscriptions reports how many subscription requests await replay.
func (d *DeferredManagementContext) QueuedSubscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queued)
}

// RebindManager returns the real context's rebind manager when attached,
// and a self-contained synthetic one otherwise. The synthetic manager never
// recurses into this facade.
func (d *DeferredManagementContext) RebindManager() RebindManager {
	if real := d.attached(); real != nil {
		return real.RebindManager()
	}
	return syntheticRebindManager{}
}

// HighAvailabilityManager returns the real context's HA manager when
// attached, and a self-contained synthetic one otherwise.
func (d *DeferredManagementContext) HighAvailabilityManager() HighAvailabilityManager {
	if real := d.attached(); real != nil {
		return real.HighAvailabilityManager()
	}
	return syntheticHAManager{}
}

package mgmt

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/ha"
	"github.com/openmast/openmast/pkg/model"
)

func TestNewLocalManagementContextValidation(t *testing.T) {
	if _, err := NewLocalManagementContext(LocalContextDeps{
		Types: catalog.NewRegistry(),
	}); err == nil {
		t.Error("expected error without an executor")
	}
	if _, err := NewLocalManagementContext(LocalContextDeps{
		Executor: exec.NewLocalExecutor(),
	}); err == nil {
		t.Error("expected error without a type registry")
	}
}

func TestLocalContextIsReal(t *testing.T) {
	mctx := newTestContext(t)
	if !mctx.IsReal() {
		t.Error("expected local context to be real")
	}
	if !mctx.IsRunning() {
		t.Error("expected fresh context to be running")
	}
}

func TestManageBindsAndStarts(t *testing.T) {
	mctx := newTestContext(t)

	e := model.NewEntity("e-1")
	e.SetState(model.StateStarting)

	h, err := mctx.Manage(e)
	if err != nil {
		t.Fatalf("failed to manage entity: %v", err)
	}
	if e.State() != model.StateStarted {
		t.Errorf("expected started, got %s", e.State())
	}

	resolved, ok := mctx.Registry().Resolve(h)
	if !ok || resolved.ID() != "e-1" {
		t.Error("expected handle to resolve to the managed entity")
	}

	found, err := mctx.Lookup("e-1")
	if err != nil {
		t.Fatalf("failed to look up managed entity: %v", err)
	}
	if found.ID() != "e-1" {
		t.Errorf("expected e-1, got %s", found.ID())
	}
}

func TestLookupUnknownObject(t *testing.T) {
	mctx := newTestContext(t)
	if _, err := mctx.Lookup("missing"); !IsUnresolvedReference(err) {
		t.Errorf("expected unresolved-reference error, got %v", err)
	}
}

func TestManageSwapsSkeletonForDelegate(t *testing.T) {
	mctx := newTestContext(t)

	skeleton := model.NewEntity("e-1")
	h1, err := mctx.Registry().Bind(skeleton)
	if err != nil {
		t.Fatalf("failed to bind skeleton: %v", err)
	}

	restored := model.NewEntity("e-1")
	restored.SetDisplayName("restored")
	h2, err := mctx.Manage(restored)
	if err != nil {
		t.Fatalf("failed to manage restored entity: %v", err)
	}

	// External holders keep their handle across the swap
	if h2 != h1 {
		t.Errorf("expected handle %s to survive swap, got %s", h1, h2)
	}
	current, ok := mctx.Registry().Resolve(h1)
	if !ok || current.DisplayName() != "restored" {
		t.Error("expected handle to serve the restored delegate")
	}
}

func TestDuplicatePreRegisterWarnsOnce(t *testing.T) {
	mctx := newTestContext(t)
	e := model.NewEntity("e-1")

	if err := mctx.PreRegister(e); err != nil {
		t.Fatalf("first PreRegister failed: %v", err)
	}
	if err := mctx.PreRegister(e); err != nil {
		t.Errorf("expected duplicate PreRegister to be a no-op, got %v", err)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	mctx := newTestContext(t)

	var got []any
	id, err := mctx.Subscribe(SubscriptionRequest{
		ObjectID: "e-1",
		Topic:    "sensor.cpu",
		Handler:  func(event any) { got = append(got, event) },
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	mctx.Publish("e-1", "sensor.cpu", 0.5)
	mctx.Publish("e-2", "sensor.cpu", 0.9) // different object
	mctx.Publish("e-1", "sensor.mem", 0.1) // different topic

	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("expected exactly the matching event, got %v", got)
	}

	if err := mctx.Unsubscribe(id); err != nil {
		t.Fatalf("failed to unsubscribe: %v", err)
	}
	if err := mctx.Unsubscribe(id); err == nil {
		t.Error("expected error unsubscribing twice")
	}
	if mctx.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", mctx.SubscriptionCount())
	}
}

func TestRequestPersistHook(t *testing.T) {
	mctx := newTestContext(t)

	var reasons []string
	mctx.OnPersistRequested = func(reason string) { reasons = append(reasons, reason) }

	if err := mctx.RequestPersist("entity-changed"); err != nil {
		t.Fatalf("failed to request persist: %v", err)
	}
	if len(reasons) != 1 || reasons[0] != "entity-changed" {
		t.Errorf("expected persist hook invocation, got %v", reasons)
	}
}

func TestRebindManagerState(t *testing.T) {
	mctx := newTestContext(t)

	rm := mctx.RebindManager()
	if !rm.IsAwaitingInitialRebind() {
		t.Error("expected fresh context to await its initial rebind")
	}
	if rm.IsReadOnly() {
		t.Error("expected fresh context not to be read-only")
	}

	mctx.RebindComplete()
	if rm.IsAwaitingInitialRebind() {
		t.Error("expected rebind-complete to clear the awaiting flag")
	}

	mctx.SetReadOnly(true)
	if !rm.IsReadOnly() {
		t.Error("expected read-only after SetReadOnly")
	}
}

func TestHighAvailabilityManagerFollowsMonitor(t *testing.T) {
	monitor := ha.NewStaticMonitor(ha.NodeStateStandby)
	mctx, err := NewLocalManagementContext(LocalContextDeps{
		Executor: exec.NewLocalExecutor(),
		Types:    catalog.NewRegistry(),
		Monitor:  monitor,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to create management context: %v", err)
	}

	hm := mctx.HighAvailabilityManager()
	if hm.IsMaster() {
		t.Error("expected standby node not to be master")
	}

	monitor.SetState(ha.NodeStateMaster)
	if !hm.IsMaster() {
		t.Error("expected mastership after promotion")
	}
	if hm.NodeState() != ha.NodeStateMaster {
		t.Errorf("expected master, got %s", hm.NodeState())
	}
}

func TestSubmitTaskThroughContext(t *testing.T) {
	mctx := newTestContext(t)

	ctx := context.Background()
	h, err := mctx.SubmitTask(ctx, &exec.Task{
		Name: "effector",
		Run:  func(ctx context.Context) (any, error) { return 42, nil },
	})
	if err != nil {
		t.Fatalf("failed to submit task: %v", err)
	}
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("task did not finish: %v", err)
	}
	result, err := h.Result()
	if err != nil || result != 42 {
		t.Errorf("expected result 42, got %v (%v)", result, err)
	}
}

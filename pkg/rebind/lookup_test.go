package rebind

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/model"
)

func newTestLookup(t *testing.T, known map[string]model.Kind) *lookupContext {
	t.Helper()
	return newLookupContext("test restore", known, nil, zerolog.Nop())
}

func TestLookupMaterializesOnce(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{
		"e-1": model.KindEntity,
	})

	first, err := lc.LookupEntity("e-1")
	if err != nil {
		t.Fatalf("failed to look up entity: %v", err)
	}
	if first.State() != model.StateRebinding {
		t.Errorf("expected fresh skeleton in rebinding, got %s", first.State())
	}

	second, err := lc.LookupEntity("e-1")
	if err != nil {
		t.Fatalf("failed to look up entity again: %v", err)
	}
	if first != second {
		t.Error("expected repeated lookups to share one skeleton")
	}
}

func TestLookupEntityGetsFacade(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{
		"e-1": model.KindEntity,
		"l-1": model.KindLocation,
	})

	e, err := lc.LookupEntity("e-1")
	if err != nil {
		t.Fatalf("failed to look up entity: %v", err)
	}
	if e.Context == nil {
		t.Fatal("expected the skeleton entity to carry a facade")
	}
	if e.Context.IsReal() {
		t.Error("expected the skeleton's context to be the facade")
	}
	if _, ok := lc.facade("e-1"); !ok {
		t.Error("expected the facade tracked for attach")
	}

	// Non-entity kinds have no facade
	if _, err := lc.LookupLocation("l-1"); err != nil {
		t.Fatalf("failed to look up location: %v", err)
	}
	if _, ok := lc.facade("l-1"); ok {
		t.Error("expected no facade for a location")
	}
}

func TestLookupUnknownID(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{})

	_, err := lc.LookupEntity("missing")
	if !mgmt.IsUnresolvedReference(err) {
		t.Errorf("expected unresolved-reference error, got %v", err)
	}
}

func TestLookupKindMismatch(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{
		"l-1": model.KindLocation,
	})

	// Wrong kind before materialization
	if _, err := lc.LookupEntity("l-1"); !mgmt.IsUnresolvedReference(err) {
		t.Errorf("expected unresolved-reference error, got %v", err)
	}

	// And after the location exists
	if _, err := lc.LookupLocation("l-1"); err != nil {
		t.Fatalf("failed to look up location: %v", err)
	}
	if _, err := lc.LookupPolicy("l-1"); !mgmt.IsUnresolvedReference(err) {
		t.Errorf("expected unresolved-reference error, got %v", err)
	}
}

func TestConcurrentLookupsShareIdentity(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{
		"e-1": model.KindEntity,
	})

	results := make([]*model.Entity, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := lc.LookupEntity("e-1")
			if err != nil {
				t.Errorf("lookup failed: %v", err)
				return
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("expected all racing lookups to resolve one skeleton")
		}
	}
}

func TestLookupManagementContext(t *testing.T) {
	mctx := newHarness(t).mctx
	lc := newLookupContext("test restore", nil, mctx, zerolog.Nop())

	got, err := lc.LookupManagementContext()
	if err != nil {
		t.Fatalf("failed to look up management context: %v", err)
	}
	if got != mgmt.ManagementContext(mctx) {
		t.Error("expected the restore's own context")
	}

	bare := newTestLookup(t, nil)
	if _, err := bare.LookupManagementContext(); err == nil {
		t.Error("expected error without a management context")
	}
}

func TestReleaseDropsObjects(t *testing.T) {
	lc := newTestLookup(t, map[string]model.Kind{
		"e-1": model.KindEntity,
	})
	if _, err := lc.LookupEntity("e-1"); err != nil {
		t.Fatalf("failed to look up entity: %v", err)
	}

	lc.release()

	if _, err := lc.LookupEntity("e-1"); !mgmt.IsUnresolvedReference(err) {
		t.Errorf("expected lookups to fail after release, got %v", err)
	}
	if _, ok := lc.object("e-1"); ok {
		t.Error("expected the object table dropped")
	}
}

package rebind

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/model"
)

// lookupContext is the per-restore resolver behind memento decoding. It
// knows the full set of persisted object IDs up front; the first lookup of
// an ID materializes its skeleton under a single lock, and every later
// lookup returns that same skeleton. Concurrent decoders may race to
// resolve the same ID; first wins, identity is stable.
type lookupContext struct {
	description string
	logger      zerolog.Logger

	// mctx is the real context driving this restore, handed out through
	// LookupManagementContext.
	mctx mgmt.ManagementContext

	mu      sync.Mutex
	known   map[string]model.Kind
	objects map[string]model.ManagedObject
	facades map[string]*mgmt.DeferredManagementContext
}

// newLookupContext builds the resolver over the set of admitted documents.
func newLookupContext(description string, known map[string]model.Kind, mctx mgmt.ManagementContext, logger zerolog.Logger) *lookupContext {
	return &lookupContext{
		description: description,
		logger:      logger.With().Str("component", "rebind-lookup").Logger(),
		mctx:        mctx,
		known:       known,
		objects:     make(map[string]model.ManagedObject, len(known)),
		facades:     make(map[string]*mgmt.DeferredManagementContext, len(known)),
	}
}

// Describe returns a human-readable identification used in diagnostics.
func (lc *lookupContext) Describe() string { return lc.description }

// lookup materializes or returns the skeleton for a known ID. An unknown
// ID, or a known ID of a different kind, is an unresolved reference.
func (lc *lookupContext) lookup(id string, want model.Kind) (model.ManagedObject, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if obj, ok := lc.objects[id]; ok {
		if obj.Kind() != want {
			return nil, mgmt.NewUnresolvedReferenceError(string(want), id)
		}
		return obj, nil
	}

	kind, ok := lc.known[id]
	if !ok || kind != want {
		return nil, mgmt.NewUnresolvedReferenceError(string(want), id)
	}

	obj := lc.materialize(id, kind)
	lc.objects[id] = obj
	return obj, nil
}

// materialize builds the skeleton for one persisted object. Entities get
// their lifecycle facade here so the object sees a management context from
// its first moment. Caller holds the lock.
func (lc *lookupContext) materialize(id string, kind model.Kind) model.ManagedObject {
	var obj model.ManagedObject
	switch kind {
	case model.KindEntity:
		e := model.NewEntity(id)
		facade := mgmt.NewDeferredManagementContext(e, lc.logger)
		e.Context = facade
		lc.facades[id] = facade
		obj = e
	case model.KindLocation:
		obj = model.NewLocation(id)
	case model.KindPolicy:
		obj = model.NewPolicy(id)
	case model.KindEnricher:
		obj = model.NewEnricher(id)
	case model.KindFeed:
		obj = model.NewFeed(id)
	case model.KindCatalogItem:
		obj = model.NewCatalogItem(id)
	default:
		// known map only holds validated kinds
		panic(fmt.Sprintf("unreachable kind %q", kind))
	}
	obj.SetState(model.StateRebinding)
	return obj
}

// LookupEntity returns the live entity for an ID.
func (lc *lookupContext) LookupEntity(id string) (*model.Entity, error) {
	obj, err := lc.lookup(id, model.KindEntity)
	if err != nil {
		return nil, err
	}
	return obj.(*model.Entity), nil
}

// LookupLocation returns the live location for an ID.
func (lc *lookupContext) LookupLocation(id string) (*model.Location, error) {
	obj, err := lc.lookup(id, model.KindLocation)
	if err != nil {
		return nil, err
	}
	return obj.(*model.Location), nil
}

// LookupPolicy returns the live policy for an ID.
func (lc *lookupContext) LookupPolicy(id string) (*model.Policy, error) {
	obj, err := lc.lookup(id, model.KindPolicy)
	if err != nil {
		return nil, err
	}
	return obj.(*model.Policy), nil
}

// LookupEnricher returns the live enricher for an ID.
func (lc *lookupContext) LookupEnricher(id string) (*model.Enricher, error) {
	obj, err := lc.lookup(id, model.KindEnricher)
	if err != nil {
		return nil, err
	}
	return obj.(*model.Enricher), nil
}

// LookupFeed returns the live feed for an ID.
func (lc *lookupContext) LookupFeed(id string) (*model.Feed, error) {
	obj, err := lc.lookup(id, model.KindFeed)
	if err != nil {
		return nil, err
	}
	return obj.(*model.Feed), nil
}

// LookupCatalogItem returns the live catalog item for an ID.
func (lc *lookupContext) LookupCatalogItem(id string) (*model.CatalogItem, error) {
	obj, err := lc.lookup(id, model.KindCatalogItem)
	if err != nil {
		return nil, err
	}
	return obj.(*model.CatalogItem), nil
}

// LookupManagementContext returns the context driving this restore.
func (lc *lookupContext) LookupManagementContext() (mgmt.ManagementContext, error) {
	if lc.mctx == nil {
		return nil, mgmt.NewInternalError("restore has no management context", nil)
	}
	return lc.mctx, nil
}

// object returns the materialized skeleton for an ID, if any lookup has
// touched it.
func (lc *lookupContext) object(id string) (model.ManagedObject, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	obj, ok := lc.objects[id]
	return obj, ok
}

// facade returns the lifecycle facade bound to an entity, if one exists.
func (lc *lookupContext) facade(id string) (*mgmt.DeferredManagementContext, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	f, ok := lc.facades[id]
	return f, ok
}

// release drops the resolver's object table. The context must not be used
// for lookups afterwards; holding it beyond the restore would keep every
// restored object reachable.
func (lc *lookupContext) release() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.known = nil
	lc.objects = nil
	lc.facades = nil
}

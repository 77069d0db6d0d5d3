// Package model defines the managed-object graph of the OpenMast management
// plane: entities, locations, policies, enrichers, feeds, and catalog items,
// together with their identity, tagging, and lifecycle-state primitives.
//
// # Core Domain Types
//
//   - ManagedObject: common identity surface shared by every graph member
//   - Entity/Location/Policy/Enricher/Feed/CatalogItem: concrete graph nodes
//   - Spec: the recipe a new object is instantiated from, with optional
//     catalog provenance
//   - LifecycleState: where an object currently sits in its management
//     lifecycle (pre-management through stopped)
//   - Handle/Registry: the stable indirection external holders store; the
//     registry maps a handle to the current live delegate, so swapping the
//     delegate during a rebind is a single registry update
//
// Exactly one management context owns the authoritative in-memory instance
// of an object at a time. During a rebind, a skeleton instance (ID and kind
// known, fields empty) exists before the object is live; skeletons carry the
// Rebinding lifecycle state.
package model

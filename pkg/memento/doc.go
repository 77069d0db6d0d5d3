// Package memento converts managed objects to and from portable snapshots.
//
// A memento records one object's kind, implementation type, and field map.
// References to other managed objects are written as (kind, id) nodes and
// never inline another object's state, which bounds document size and
// breaks cycles. Deserialization resolves references through a per-restore
// LookupContext; because skeletons are registered with the context before
// their fields are populated, re-entrant lookups during a cyclic restore
// terminate instead of recursing.
//
// Three value families get special treatment:
//
//   - specs: the catalog provenance header is resolved (following one
//     superseded-by mapping if the item was upgraded) to a type-loading
//     context, which is pushed for the remainder of that object's decode
//   - tasks: an in-flight computation is never restored by value; a
//     successfully finished task contributes its resolved result, anything
//     else is omitted with a once-per-codec warning
//   - management contexts: never written; always satisfied from the
//     restoring LookupContext
//
// Converter dispatch is an explicit per-kind table; no reflection.
package memento

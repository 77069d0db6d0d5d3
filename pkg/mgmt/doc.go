// Package mgmt provides the management-context surface of the OpenMast
// plane and its lifecycle gating.
//
// # Contexts
//
// LocalManagementContext is the one real context per process: it owns the
// handle registry for the live graph and fronts the execution, HA, and
// catalog collaborators.
//
// DeferredManagementContext is the lifecycle facade bound to one managed
// object while that object is not attached to a real context. Each of its
// methods no-ops, queues, delegates, or fails depending on the subsystem:
// delegate-bucket operations fail with a not-real-context error until
// SetManagementContext attaches the real context, while the rebind and HA
// accessors return self-contained synthetic managers so early-startup
// queries like "am I read-only?" get an answer instead of an error.
//
// # Errors
//
// PlaneError classifies failures (not_real_context, unresolved_reference,
// provenance, partial_restore) with object and operation context; IsXxx
// helpers work through wrapped chains via errors.As.
package mgmt

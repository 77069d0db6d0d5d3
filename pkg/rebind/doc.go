// Package rebind rebuilds the live object graph from persisted snapshot
// documents and attaches it to a management context.
//
// A restore runs in four phases. Admission evaluates every document
// against the policy gate; excluded documents never reach the decoder.
// Skeleton materialization registers every admitted (kind, id) pair with
// the per-restore lookup context, so references between documents resolve
// regardless of decode order; entities get their lifecycle facade at this
// point and spend the restore in the rebinding state. Decoding runs on a
// bounded worker pool, each document populating its skeleton through the
// shared lookup context. Attach flips each object to starting, binds its
// facade to the real management context (replaying queued subscriptions),
// swaps it into the handle registry, and marks it started.
//
// In strict mode any excluded document aborts the restore; otherwise the
// report names every exclusion and the rest of the graph comes up. The
// attach phase can optionally wait for HA mastership under a deadline.
//
// The inverse operation, Snapshot, serializes the whole live graph in
// persistence order and sweeps documents whose objects no longer exist.
package rebind

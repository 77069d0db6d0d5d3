// Package stores persists managed-object snapshot documents for the
// OpenMast management plane. The persisted form is a sequence of tagged
// documents, one per managed object, each carrying kind, implementation
// type, a provenance header, and the serialized memento body.
//
// Three backends implement SnapshotStore: SQLite with WAL mode and
// embedded migrations, a file tree with one JSON document per object and
// fsnotify change watching, and an in-memory store for tests.
package stores

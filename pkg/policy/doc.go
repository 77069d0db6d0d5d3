// Package policy provides Open Policy Agent (OPA) admission gating for
// snapshot restores.
//
// Before a persisted document is rebound into the live graph, the gate
// evaluates it against Rego policies. Findings with error or critical
// severity exclude the document (or, in strict mode, abort the restore);
// warning findings are reported but do not exclude.
//
// Built-in policies cover document identity (object ID and kind must be
// present), kind recognition, empty bodies, and missing catalog
// provenance. Site policies are loaded from .rego or .json files and can
// be hot-reloaded via the loader's file watcher.
//
// Policies are compiled once and reused across evaluations. The policy
// input exposes the document header (object_id, kind, type,
// catalog_item_id, body_size) and the evaluation context; the memento
// body is opaque to admission.
package policy

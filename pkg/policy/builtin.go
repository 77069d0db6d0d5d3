package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in admission policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		documentIdentityPolicy(),
		knownKindsPolicy(),
		emptyBodyPolicy(),
		provenanceHeaderPolicy(),
	}
}

// documentIdentityPolicy rejects documents with no usable identity.
func documentIdentityPolicy() Policy {
	return Policy{
		Name:        "document-identity",
		Description: "Rejects snapshot documents with a missing object ID or kind",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"identity", "integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmast.policies.identity

import rego.v1

deny contains violation if {
	input.document
	doc := input.document

	# A document without an object ID cannot be bound into the graph
	not doc.object_id
	violation := {
		"message": "snapshot document has no object ID",
		"severity": "error",
	}
}

deny contains violation if {
	input.document
	doc := input.document

	doc.object_id == ""
	violation := {
		"message": "snapshot document has an empty object ID",
		"severity": "error",
	}
}

deny contains violation if {
	input.document
	doc := input.document

	not doc.kind
	violation := {
		"message": sprintf("document %s has no kind", [doc.object_id]),
		"severity": "error",
		"object_id": doc.object_id,
	}
}`,
	}
}

// knownKindsPolicy flags documents whose kind is not a known graph kind.
func knownKindsPolicy() Policy {
	return Policy{
		Name:        "known-kinds",
		Description: "Flags snapshot documents with an unrecognized managed-object kind",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"kinds", "integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmast.policies.kinds

import rego.v1

known_kinds := ["entity", "location", "policy", "enricher", "feed", "catalog-item"]

deny contains violation if {
	input.document
	doc := input.document
	doc.kind

	not doc.kind in known_kinds
	violation := {
		"message": sprintf("document %s has unrecognized kind %s", [doc.object_id, doc.kind]),
		"severity": "error",
		"object_id": doc.object_id,
	}
}`,
	}
}

// emptyBodyPolicy warns about documents with no memento body.
func emptyBodyPolicy() Policy {
	return Policy{
		Name:        "empty-body",
		Description: "Warns about snapshot documents with an empty memento body",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmast.policies.body

import rego.v1

deny contains violation if {
	input.document
	doc := input.document

	doc.body_size == 0
	violation := {
		"message": sprintf("document %s has an empty memento body", [doc.object_id]),
		"severity": "warning",
		"object_id": doc.object_id,
	}
}`,
	}
}

// provenanceHeaderPolicy warns when a typed document carries no catalog
// provenance. Such objects restore with only globally registered types
// available.
func provenanceHeaderPolicy() Policy {
	return Policy{
		Name:        "provenance-header",
		Description: "Warns about typed documents without a catalog provenance header",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"provenance", "catalog"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmast.policies.provenance

import rego.v1

deny contains violation if {
	input.document
	doc := input.document

	doc.type
	doc.type != ""
	not doc.catalog_item_id

	violation := {
		"message": sprintf("document %s has type %s but no catalog provenance", [doc.object_id, doc.type]),
		"severity": "warning",
		"object_id": doc.object_id,
	}
}`,
	}
}

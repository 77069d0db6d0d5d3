package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// exclude a document from restore.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that exclude a document from restore.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that must abort the whole restore.
	SeverityCritical Severity = "critical"
)

// Policy represents one admission rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single admission finding.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// ObjectID is the snapshot document the finding is about.
	ObjectID string `json:"object_id,omitempty"`

	// Message is a human-readable finding message.
	Message string `json:"message"`

	// Severity is the finding severity level.
	Severity Severity `json:"severity"`
}

// Decision is the admission outcome for one snapshot document.
type Decision struct {
	// Allowed indicates whether the document may be restored.
	Allowed bool `json:"allowed"`

	// Violations lists the findings that exclude the document.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists findings that do not exclude the document.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedAt is when the decision was made.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of the policies consulted.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// DocumentInput is the policy-visible shape of one snapshot document.
// The memento body itself is opaque to admission; only its size is
// exposed.
type DocumentInput struct {
	// ObjectID is the document's managed-object ID.
	ObjectID string `json:"object_id"`

	// Kind is the managed-object kind.
	Kind string `json:"kind"`

	// Type is the implementation type name.
	Type string `json:"type,omitempty"`

	// CatalogItemID is the catalog provenance header.
	CatalogItemID string `json:"catalog_item_id,omitempty"`

	// BodySize is the serialized memento size in bytes.
	BodySize int `json:"body_size"`
}

// EvalContext provides context information for an admission evaluation.
type EvalContext struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being gated, e.g. "restore".
	Operation string `json:"operation,omitempty"`

	// Strict indicates whether the restore runs in strict mode.
	Strict bool `json:"strict"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Input is the input data for one admission evaluation.
type Input struct {
	// Document is the snapshot document being evaluated.
	Document *DocumentInput `json:"document"`

	// Context provides additional evaluation context.
	Context *EvalContext `json:"context"`
}

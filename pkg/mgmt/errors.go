package mgmt

import (
	"errors"
	"fmt"
)

// ErrorClass classifies management-plane errors for handling and reporting.
type ErrorClass string

const (
	// ErrClassNotRealContext indicates a delegate-bucket operation was
	// attempted against a lifecycle facade with no real context attached.
	ErrClassNotRealContext ErrorClass = "not_real_context"

	// ErrClassUnresolvedReference indicates a persisted reference ID could
	// not be resolved during a restore.
	ErrClassUnresolvedReference ErrorClass = "unresolved_reference"

	// ErrClassProvenance indicates a catalog/type-registry lookup failed
	// while resolving a spec's provenance.
	ErrClassProvenance ErrorClass = "provenance"

	// ErrClassPartialRestore indicates an object was excluded from the
	// final graph; non-fatal to the rest of the restore.
	ErrClassPartialRestore ErrorClass = "partial_restore"

	// ErrClassInternal covers everything else.
	ErrClassInternal ErrorClass = "internal"
)

// PlaneError is a classified management-plane error with object and
// operation context.
type PlaneError struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Object is the managed-object ID the error relates to, if any.
	Object string

	// Operation is the operation being performed, if any.
	Operation string

	// Path is the document position for deserialization errors, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PlaneError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Object != "" {
		msg += fmt.Sprintf(" (object=%s", e.Object)
		if e.Operation != "" {
			msg += fmt.Sprintf(", operation=%s", e.Operation)
		}
		if e.Path != "" {
			msg += fmt.Sprintf(", path=%s", e.Path)
		}
		msg += ")"
	} else if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for chain inspection.
func (e *PlaneError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two plane errors match when
// their classes match.
func (e *PlaneError) Is(target error) bool {
	t, ok := target.(*PlaneError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithObject adds managed-object context to the error.
func (e *PlaneError) WithObject(id string) *PlaneError {
	e.Object = id
	return e
}

// WithOperation adds operation context to the error.
func (e *PlaneError) WithOperation(op string) *PlaneError {
	e.Operation = op
	return e
}

// WithPath adds document-position context to the error.
func (e *PlaneError) WithPath(path string) *PlaneError {
	e.Path = path
	return e
}

// NewNotRealContextError reports a delegate-bucket operation attempted
// against a facade with no real management context attached.
func NewNotRealContextError(objectID, operation string) *PlaneError {
	return &PlaneError{
		Class:     ErrClassNotRealContext,
		Message:   "management context not yet available",
		Object:    objectID,
		Operation: operation,
	}
}

// NewUnresolvedReferenceError reports a reference ID that could not be
// resolved during a restore.
func NewUnresolvedReferenceError(kind, id string) *PlaneError {
	return &PlaneError{
		Class:   ErrClassUnresolvedReference,
		Message: fmt.Sprintf("no %s found with id %s", kind, id),
		Object:  id,
	}
}

// NewProvenanceError reports a failed catalog provenance resolution.
func NewProvenanceError(catalogItemID string, err error) *PlaneError {
	return &PlaneError{
		Class:   ErrClassProvenance,
		Message: fmt.Sprintf("cannot resolve catalog item %s", catalogItemID),
		Err:     err,
	}
}

// NewPartialRestoreError reports an object excluded from the restored
// graph.
func NewPartialRestoreError(objectID string, err error) *PlaneError {
	return &PlaneError{
		Class:   ErrClassPartialRestore,
		Message: "object excluded from restored graph",
		Object:  objectID,
		Err:     err,
	}
}

// NewInternalError reports an unclassified management-plane failure.
func NewInternalError(message string, err error) *PlaneError {
	return &PlaneError{
		Class:   ErrClassInternal,
		Message: message,
		Err:     err,
	}
}

// IsNotRealContext returns true if the error is a not-real-context error.
func IsNotRealContext(err error) bool {
	return hasClass(err, ErrClassNotRealContext)
}

// IsUnresolvedReference returns true if the error is an unresolved
// reference error.
func IsUnresolvedReference(err error) bool {
	return hasClass(err, ErrClassUnresolvedReference)
}

// IsProvenance returns true if the error is a provenance resolution error.
func IsProvenance(err error) bool {
	return hasClass(err, ErrClassProvenance)
}

// IsPartialRestore returns true if the error is a partial-restore error.
func IsPartialRestore(err error) bool {
	return hasClass(err, ErrClassPartialRestore)
}

func hasClass(err error, class ErrorClass) bool {
	var e *PlaneError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

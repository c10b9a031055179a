// Package marathonerr defines the typed error kinds raised across the
// control plane (spec.md §7) so the API layer can map them to HTTP status
// without inspecting error strings.
package marathonerr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FieldError names one invalid field in a ValidationError.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Reason)
}

// ValidationError aggregates one or more FieldErrors raised while applying
// a GroupUpdate or a RootGroup transformation.
type ValidationError struct {
	Fields *multierror.Error
}

// NewValidationError builds a ValidationError from one or more field
// errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	ve := &ValidationError{Fields: &multierror.Error{}}
	for _, f := range fields {
		ve.Fields = multierror.Append(ve.Fields, f)
	}

	return ve
}

func (e *ValidationError) Error() string {
	return e.Fields.Error()
}

// FieldErrors returns the individual field errors.
func (e *ValidationError) FieldErrors() []FieldError {
	out := make([]FieldError, 0, len(e.Fields.Errors))
	for _, err := range e.Fields.Errors {
		if fe, ok := err.(FieldError); ok {
			out = append(out, fe)
		}
	}

	return out
}

// ConflictingPath is raised when a transform would insert an app at a path
// already occupied by a group, or vice versa.
type ConflictingPath struct {
	Path string
}

func (e ConflictingPath) Error() string {
	return fmt.Sprintf("path already exists with a conflicting kind: %s", e.Path)
}

// InvalidHierarchy is raised when a child's id is not a child path of its
// intended parent.
type InvalidHierarchy struct {
	Child  string
	Parent string
}

func (e InvalidHierarchy) Error() string {
	return fmt.Sprintf("%s is not a child of %s", e.Child, e.Parent)
}

// UnknownGroup is raised by reads that target a path absent from the tree.
type UnknownGroup struct {
	Path string
}

func (e UnknownGroup) Error() string {
	return fmt.Sprintf("no group or app at %s", e.Path)
}

// UnknownVersion is raised by version-scoped reads that miss the
// repository.
type UnknownVersion struct {
	Path    string
	Version string
}

func (e UnknownVersion) Error() string {
	return fmt.Sprintf("no version %s for %s", e.Version, e.Path)
}

// DeploymentInProgress is raised by updateRoot when a conflicting
// deployment is already running and force was not requested.
type DeploymentInProgress struct {
	ConflictingPlanID string
}

func (e DeploymentInProgress) Error() string {
	return fmt.Sprintf("deployment %s is already in progress", e.ConflictingPlanID)
}

// ConcurrentModification is raised by Repository.CompareAndSwapCurrent
// when the expected current version no longer matches, meaning another
// writer advanced it first.
type ConcurrentModification struct {
	Path     string
	Expected string
	Actual   string
}

func (e ConcurrentModification) Error() string {
	return fmt.Sprintf("%s: expected current version %s, found %s", e.Path, e.Expected, e.Actual)
}

// RepositoryFailure wraps a retryable persistence failure.
type RepositoryFailure struct {
	Cause error
}

func (e RepositoryFailure) Error() string {
	return fmt.Sprintf("repository failure: %v", e.Cause)
}

func (e RepositoryFailure) Unwrap() error {
	return e.Cause
}

// AuthenticationFailure and AuthorizationFailure are returned by the
// external Capabilities collaborator; defined here so the API layer can
// map them without importing the auth package.
type AuthenticationFailure struct{ Reason string }

func (e AuthenticationFailure) Error() string { return "authentication failed: " + e.Reason }

type AuthorizationFailure struct{ Reason string }

func (e AuthorizationFailure) Error() string { return "authorization failed: " + e.Reason }

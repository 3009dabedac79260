package domain

import (
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/schema"
)

// Error taxonomy shared by the services, the storage engines and the HTTP layer.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateName          = errors.New("duplicate name")
	ErrValidationFailed       = errors.New("validation failed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInUse                  = errors.New("in use")
	ErrInvalidStructure       = errors.New("invalid structure")
	ErrUnknownTenant          = errors.New("unknown tenant")
	ErrInvalidInput           = errors.New("invalid input")

	// ErrCrossTenantAccess wraps ErrNotFound so callers that only check for
	// absence cannot tell the two apart.
	ErrCrossTenantAccess = fmt.Errorf("%w: cross-tenant access", ErrNotFound)
)

// ValidationError carries the full ordered violation list of a rejected value.
type ValidationError struct {
	Violations []schema.Violation `json:"violations"`
	Warnings   []schema.Violation `json:"warnings,omitempty"`
}

// NewValidationError builds a ValidationError from a failed result
func NewValidationError(result schema.Result) *ValidationError {
	return &ValidationError{Violations: result.Violations, Warnings: result.Warnings}
}

func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return ErrValidationFailed.Error()
	case 1:
		return fmt.Sprintf("%s: %s", ErrValidationFailed, e.Violations[0])
	}
	return fmt.Sprintf("%s: %s (and %d more)", ErrValidationFailed, e.Violations[0], len(e.Violations)-1)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// StructureError reports an ill-formed field structure submitted for publishing.
type StructureError struct {
	*schema.StructureError
}

func (e *StructureError) Is(target error) bool {
	return target == ErrInvalidStructure
}

func (e *StructureError) Unwrap() error {
	return e.StructureError
}

// IsRetryable reports whether err is safe to retry after re-reading state.
// Only optimistic concurrency conflicts are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

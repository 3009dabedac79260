package domain

import (
	"context"
	"time"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
)

// BoundRecord is a downstream record pinned to one schema version.
type BoundRecord struct {
	ID            uuid.UUID      `json:"id"`
	TenantID      TenantID       `json:"tenant_id"`
	DefinitionID  uuid.UUID      `json:"definition_id"`
	VersionNumber int            `json:"version_number"`
	VersionID     uuid.UUID      `json:"version_id"`
	Values        map[string]any `json:"values"`
	Revision      int64          `json:"revision"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RecordView is a record together with the structure it was bound to.
type RecordView struct {
	Record  *BoundRecord   `json:"record"`
	Version *SchemaVersion `json:"version"`
}

// RecordResult is a written record plus the non-fatal warnings its values
// produced.
type RecordResult struct {
	*BoundRecord
	Warnings []schema.Violation `json:"warnings,omitempty"`
}

// ValidationReport is the outcome of a dry-run validation against a version.
type ValidationReport struct {
	Version    int                `json:"version"`
	Valid      bool               `json:"valid"`
	Violations []schema.Violation `json:"violations,omitempty"`
	Warnings   []schema.Violation `json:"warnings,omitempty"`
}

// RecordCreate represents record creation data
type RecordCreate struct {
	Values map[string]any `json:"values" validate:"required"`
}

// RecordValuesUpdate represents a values replacement
type RecordValuesUpdate struct {
	Values map[string]any `json:"values" validate:"required"`
}

// RecordRebind represents an explicit rebind request
type RecordRebind struct {
	Version int `json:"version" validate:"required,min=1"`
}

// RecordListParams pages through a definition's records
type RecordListParams struct {
	Limit  int `validate:"min=0,max=500"`
	Offset int `validate:"min=0"`
}

// RecordRepository defines the interface for record storage.
type RecordRepository interface {
	// Create persists rec. It fails with ErrNotFound if the definition or
	// the referenced version no longer exists, and is serialised against
	// DefinitionRepository.Delete for the same definition.
	Create(ctx context.Context, rec *BoundRecord) error
	Get(ctx context.Context, tenantID TenantID, id uuid.UUID) (*BoundRecord, error)
	ListByDefinition(ctx context.Context, tenantID TenantID, definitionID uuid.UUID, limit, offset int) ([]BoundRecord, error)

	// UpdateValues and Rebind apply only if the stored revision still equals
	// expectedRevision, otherwise they fail with ErrConcurrentModification.
	UpdateValues(ctx context.Context, tenantID TenantID, id uuid.UUID, expectedRevision int64, values map[string]any, at time.Time) (*BoundRecord, error)
	Rebind(ctx context.Context, tenantID TenantID, id uuid.UUID, expectedRevision int64, target *SchemaVersion, at time.Time) (*BoundRecord, error)
	Delete(ctx context.Context, tenantID TenantID, id uuid.UUID) error
}

// CloneValues deep-copies a decoded values tree.
func CloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneValues(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

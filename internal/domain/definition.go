package domain

import (
	"context"
	"time"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
)

// SchemaDefinition is the small mutable pointer record of a named form.
// ActiveVersion is 0 until the first version is published; Revision is the
// concurrency token bumped by every pointer change.
type SchemaDefinition struct {
	ID            uuid.UUID `json:"id"`
	TenantID      TenantID  `json:"tenant_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ActiveVersion int       `json:"active_version"`
	Revision      int64     `json:"revision"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SchemaVersion is an immutable snapshot of a definition's structure.
// Active is derived from the owning definition's pointer at read time.
type SchemaVersion struct {
	ID           uuid.UUID        `json:"id"`
	DefinitionID uuid.UUID        `json:"definition_id"`
	TenantID     TenantID         `json:"tenant_id"`
	Number       int              `json:"number"`
	Structure    schema.Structure `json:"structure"`
	Active       bool             `json:"active"`
	CreatedAt    time.Time        `json:"created_at"`
}

// DefinitionCreate represents definition creation data
type DefinitionCreate struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"max=1024"`
}

// VersionPublish represents a publish request. ExpectedVersion is the
// version number the caller believes is currently active (0 before the first
// publish).
type VersionPublish struct {
	ExpectedVersion int              `json:"expected_version" validate:"min=0"`
	Structure       schema.Structure `json:"structure"`
}

// DefinitionRepository defines the interface for definition and version storage.
// Every lookup is keyed by tenant. Get-style methods return nil, nil when
// nothing matches.
type DefinitionRepository interface {
	Create(ctx context.Context, def *SchemaDefinition) error
	Get(ctx context.Context, tenantID TenantID, id uuid.UUID) (*SchemaDefinition, error)
	List(ctx context.Context, tenantID TenantID) ([]SchemaDefinition, error)

	// AppendVersion atomically appends v and moves the active pointer to it,
	// provided the pointer still equals expected. v.Number must be expected+1.
	AppendVersion(ctx context.Context, tenantID TenantID, expected int, v *SchemaVersion) (*SchemaDefinition, error)
	GetVersion(ctx context.Context, tenantID TenantID, definitionID uuid.UUID, number int) (*SchemaVersion, error)
	ListVersions(ctx context.Context, tenantID TenantID, definitionID uuid.UUID) ([]SchemaVersion, error)

	// Delete removes the definition and its versions. It fails with ErrInUse
	// while any record is bound to one of its versions.
	Delete(ctx context.Context, tenantID TenantID, id uuid.UUID) error
}

// VersionCache stores immutable snapshots. Get returns nil, nil on a miss.
type VersionCache interface {
	Get(ctx context.Context, tenantID TenantID, definitionID uuid.UUID, number int) (*SchemaVersion, error)
	Set(ctx context.Context, v *SchemaVersion) error
	InvalidateDefinition(ctx context.Context, tenantID TenantID, definitionID uuid.UUID) error
}

package domain

import (
	"context"
	"time"
)

// TenantID is the opaque identity supplied by the authentication layer.
type TenantID string

func (id TenantID) String() string {
	return string(id)
}

// Tenant represents an isolated owner of schemas and records
type Tenant struct {
	ID        TenantID  `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantCreate represents tenant registration data
type TenantCreate struct {
	ID   TenantID `json:"id" validate:"required,max=63,hostname_rfc1123"`
	Name string   `json:"name" validate:"required,max=255"`
}

// TenantRepository defines the interface for tenant storage
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, id TenantID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

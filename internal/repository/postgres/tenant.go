package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/jackc/pgx/v5"
)

// TenantRepository handles tenant data access
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create registers a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Pool.Exec(ctx, query, string(tenant.ID), tenant.Name, tenant.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("tenant %q: %w", tenant.ID, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// Get retrieves a tenant by ID
func (r *TenantRepository) Get(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		WHERE id = $1
	`

	var tenant domain.Tenant
	var tenantID string
	err := r.db.Pool.QueryRow(ctx, query, string(id)).Scan(&tenantID, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	tenant.ID = domain.TenantID(tenantID)

	return &tenant, nil
}

// List retrieves all tenants ordered by ID
func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		var tenantID string
		if err := rows.Scan(&tenantID, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenant.ID = domain.TenantID(tenantID)
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

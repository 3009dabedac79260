package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Rrens/formvault/internal/domain"
)

// TenantRepository handles tenant data access
type TenantRepository struct {
	store *Store
}

// Create registers a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.tenants[tenant.ID]; ok {
		return fmt.Errorf("tenant %q: %w", tenant.ID, domain.ErrDuplicateName)
	}
	r.store.tenants[tenant.ID] = *tenant
	return nil
}

// Get retrieves a tenant by ID
func (r *TenantRepository) Get(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tenant, ok := r.store.tenants[id]
	if !ok {
		return nil, nil
	}
	return &tenant, nil
}

// List retrieves all tenants ordered by ID
func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	r.store.mu.RLock()
	tenants := make([]domain.Tenant, 0, len(r.store.tenants))
	for _, t := range r.store.tenants {
		tenants = append(tenants, t)
	}
	r.store.mu.RUnlock()

	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/rs/zerolog/log"
)

// TenantRegistry is the authoritative list of isolation boundaries
type TenantRegistry struct {
	repo         domain.TenantRepository
	autoRegister bool

	mu    sync.RWMutex
	known map[domain.TenantID]struct{}
}

// NewTenantRegistry creates a new tenant registry. With autoRegister set, a
// tenant is registered the first time an authenticated caller uses it.
func NewTenantRegistry(repo domain.TenantRepository, autoRegister bool) *TenantRegistry {
	return &TenantRegistry{
		repo:         repo,
		autoRegister: autoRegister,
		known:        make(map[domain.TenantID]struct{}),
	}
}

// Register creates a new tenant
func (r *TenantRegistry) Register(ctx context.Context, input domain.TenantCreate) (*domain.Tenant, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}

	tenant := &domain.Tenant{
		ID:        input.ID,
		Name:      input.Name,
		CreatedAt: now(),
	}

	if err := r.repo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}
	r.remember(tenant.ID)

	log.Info().Str("tenant", tenant.ID.String()).Msg("Tenant registered")
	return tenant, nil
}

// Get retrieves a tenant by ID
func (r *TenantRegistry) Get(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	tenant, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}

// List retrieves all tenants
func (r *TenantRegistry) List(ctx context.Context) ([]domain.Tenant, error) {
	tenants, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// Resolve confirms that id names a registered tenant. Every tenant-scoped
// operation starts here.
func (r *TenantRegistry) Resolve(ctx context.Context, id domain.TenantID) error {
	if id == "" {
		return domain.ErrUnknownTenant
	}

	r.mu.RLock()
	_, ok := r.known[id]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	tenant, err := r.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if tenant != nil {
		r.remember(id)
		return nil
	}

	if !r.autoRegister {
		return fmt.Errorf("tenant %q: %w", id, domain.ErrUnknownTenant)
	}

	_, err = r.Register(ctx, domain.TenantCreate{ID: id, Name: string(id)})
	if errors.Is(err, domain.ErrDuplicateName) {
		// lost the race with another first request
		r.remember(id)
		return nil
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return fmt.Errorf("tenant %q: %w", id, domain.ErrUnknownTenant)
	}
	return err
}

func (r *TenantRegistry) remember(id domain.TenantID) {
	r.mu.Lock()
	r.known[id] = struct{}{}
	r.mu.Unlock()
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/metrics"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// VersionManager owns the lifecycle of schema definitions: the mutable
// active-version pointer and the append-only history behind it.
type VersionManager struct {
	tenants *TenantRegistry
	defs    domain.DefinitionRepository
	cache   domain.VersionCache
	metrics *metrics.Metrics
}

// NewVersionManager creates a new version manager. cache and m may be nil.
func NewVersionManager(tenants *TenantRegistry, defs domain.DefinitionRepository, cache domain.VersionCache, m *metrics.Metrics) *VersionManager {
	return &VersionManager{
		tenants: tenants,
		defs:    defs,
		cache:   cache,
		metrics: m,
	}
}

// CreateDefinition creates an empty, unpublished definition
func (s *VersionManager) CreateDefinition(ctx context.Context, tenant domain.TenantID, input domain.DefinitionCreate) (*domain.SchemaDefinition, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	ts := now()
	def := &domain.SchemaDefinition{
		ID:          uuid.New(),
		TenantID:    tenant,
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	if err := s.defs.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	log.Info().
		Str("tenant", tenant.String()).
		Str("definition_id", def.ID.String()).
		Str("name", def.Name).
		Msg("Definition created")
	return def, nil
}

// GetDefinition retrieves a definition's pointer record
func (s *VersionManager) GetDefinition(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	return s.loadDefinition(ctx, tenant, id)
}

// ListDefinitions retrieves all of a tenant's definitions
func (s *VersionManager) ListDefinitions(ctx context.Context, tenant domain.TenantID) ([]domain.SchemaDefinition, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}

	defs, err := s.defs.List(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	for _, def := range defs {
		if err := checkOwner(tenant, def.TenantID, "definition", def.ID); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// PublishVersion appends a new immutable version and makes it active. The
// caller states which version it believes is active; if another publish got
// there first the call fails with ErrConcurrentModification and nothing is
// written.
func (s *VersionManager) PublishVersion(ctx context.Context, tenant domain.TenantID, id uuid.UUID, input domain.VersionPublish) (*domain.SchemaVersion, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if _, err := s.loadDefinition(ctx, tenant, id); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if err := schema.CheckStructure(input.Structure); err != nil {
		var se *schema.StructureError
		if errors.As(err, &se) {
			return nil, &domain.StructureError{StructureError: se}
		}
		return nil, err
	}

	v := &domain.SchemaVersion{
		ID:           uuid.New(),
		DefinitionID: id,
		TenantID:     tenant,
		Number:       input.ExpectedVersion + 1,
		Structure:    input.Structure.Clone(),
		CreatedAt:    now(),
	}

	def, err := s.defs.AppendVersion(ctx, tenant, input.ExpectedVersion, v)
	s.metrics.ObservePublish(err)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			log.Debug().
				Str("tenant", tenant.String()).
				Str("definition_id", id.String()).
				Int("expected", input.ExpectedVersion).
				Msg("Publish lost to a concurrent publish")
			return nil, err
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to publish version: %w", err)
	}

	v.Active = def.ActiveVersion == v.Number
	s.cacheVersion(ctx, v)

	log.Info().
		Str("tenant", tenant.String()).
		Str("definition_id", id.String()).
		Int("version", v.Number).
		Msg("Version published")
	return v, nil
}

// GetActiveVersion returns the version new records bind to. It is always
// read from storage so that it reflects the latest publish.
func (s *VersionManager) GetActiveVersion(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.SchemaVersion, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	def, err := s.loadDefinition(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if def.ActiveVersion == 0 {
		return nil, fmt.Errorf("no version published: %w", domain.ErrNotFound)
	}

	v, err := s.defs.GetVersion(ctx, tenant, id, def.ActiveVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if v == nil {
		// deleted between the two reads
		return nil, domain.ErrNotFound
	}
	if err := checkOwner(tenant, v.TenantID, "version", v.ID); err != nil {
		return nil, err
	}
	// v was the active version when def was read, which is the instant this
	// call reports on.
	v.Active = true
	return v, nil
}

// GetVersion returns one historical snapshot, served from the cache when
// one is configured.
func (s *VersionManager) GetVersion(ctx context.Context, tenant domain.TenantID, id uuid.UUID, number int) (*domain.SchemaVersion, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	def, err := s.loadDefinition(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, def, number)
}

// ListVersions returns a definition's full history in ascending order
func (s *VersionManager) ListVersions(ctx context.Context, tenant domain.TenantID, id uuid.UUID) ([]domain.SchemaVersion, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if _, err := s.loadDefinition(ctx, tenant, id); err != nil {
		return nil, err
	}

	versions, err := s.defs.ListVersions(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	for _, v := range versions {
		if err := checkOwner(tenant, v.TenantID, "version", v.ID); err != nil {
			return nil, err
		}
	}
	if versions == nil {
		versions = []domain.SchemaVersion{}
	}
	return versions, nil
}

// DeleteDefinition removes a definition and its history. It fails with
// ErrInUse while any record is bound to one of its versions.
func (s *VersionManager) DeleteDefinition(ctx context.Context, tenant domain.TenantID, id uuid.UUID) error {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return err
	}
	if _, err := s.loadDefinition(ctx, tenant, id); err != nil {
		return err
	}

	if err := s.defs.Delete(ctx, tenant, id); err != nil {
		if errors.Is(err, domain.ErrInUse) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateDefinition(ctx, tenant, id); err != nil {
			log.Warn().Err(err).Str("definition_id", id.String()).Msg("Failed to evict cached versions")
		}
	}

	log.Info().
		Str("tenant", tenant.String()).
		Str("definition_id", id.String()).
		Msg("Definition deleted")
	return nil
}

func (s *VersionManager) loadDefinition(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	def, err := s.defs.Get(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	if def == nil {
		return nil, domain.ErrNotFound
	}
	if err := checkOwner(tenant, def.TenantID, "definition", def.ID); err != nil {
		return nil, err
	}
	return def, nil
}

// snapshot loads version number of def, consulting the cache first.
func (s *VersionManager) snapshot(ctx context.Context, def *domain.SchemaDefinition, number int) (*domain.SchemaVersion, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, def.TenantID, def.ID, number)
		if err != nil {
			log.Warn().Err(err).Str("definition_id", def.ID.String()).Msg("Version cache read failed")
		}
		if cached != nil {
			if err := checkOwner(def.TenantID, cached.TenantID, "version", cached.ID); err != nil {
				return nil, err
			}
			cached.Active = cached.Number == def.ActiveVersion
			return cached, nil
		}
	}

	v, err := s.defs.GetVersion(ctx, def.TenantID, def.ID, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}
	if err := checkOwner(def.TenantID, v.TenantID, "version", v.ID); err != nil {
		return nil, err
	}

	s.cacheVersion(ctx, v)
	v.Active = v.Number == def.ActiveVersion
	return v, nil
}

func (s *VersionManager) cacheVersion(ctx context.Context, v *domain.SchemaVersion) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, v); err != nil {
		log.Warn().Err(err).Str("version_id", v.ID.String()).Msg("Failed to cache version")
	}
}

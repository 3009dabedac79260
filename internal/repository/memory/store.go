// Package memory is the in-process storage engine. Version history is an
// append-only arena of immutable snapshots; each definition's small pointer
// record is swapped with a compare-and-swap so publishers never block one
// another.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
)

// Store holds every tenant's data in process memory
type Store struct {
	mu          sync.RWMutex
	tenants     map[domain.TenantID]domain.Tenant
	definitions map[domain.TenantID]map[uuid.UUID]*definitionEntry
	names       map[domain.TenantID]map[string]uuid.UUID
	records     map[domain.TenantID]map[uuid.UUID]*recordEntry
}

// definitionEntry is the per-definition concurrency unit.
type definitionEntry struct {
	// bind is held shared while a record is bound and exclusively by delete.
	bind  sync.RWMutex
	state atomic.Pointer[definitionState]
	refs  atomic.Int64
}

// definitionState is never modified after it is published through
// definitionEntry.state. versions[i] holds version number i+1.
type definitionState struct {
	def      domain.SchemaDefinition
	versions []*domain.SchemaVersion
	deleted  bool
}

// recordEntry.deleted is set under mu once the record leaves Store.records.
type recordEntry struct {
	mu      sync.Mutex
	rec     domain.BoundRecord
	def     *definitionEntry
	deleted bool
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		tenants:     make(map[domain.TenantID]domain.Tenant),
		definitions: make(map[domain.TenantID]map[uuid.UUID]*definitionEntry),
		names:       make(map[domain.TenantID]map[string]uuid.UUID),
		records:     make(map[domain.TenantID]map[uuid.UUID]*recordEntry),
	}
}

// Tenants returns the tenant repository
func (s *Store) Tenants() domain.TenantRepository {
	return &TenantRepository{store: s}
}

// Definitions returns the definition and version repository
func (s *Store) Definitions() domain.DefinitionRepository {
	return &DefinitionRepository{store: s}
}

// Records returns the record repository
func (s *Store) Records() domain.RecordRepository {
	return &RecordRepository{store: s}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (s *Store) definition(tenantID domain.TenantID, id uuid.UUID) *definitionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.definitions[tenantID][id]
}

func (s *Store) record(tenantID domain.TenantID, id uuid.UUID) *recordEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[tenantID][id]
}

func copyVersion(v *domain.SchemaVersion, active int) *domain.SchemaVersion {
	out := *v
	out.Structure = v.Structure.Clone()
	out.Active = v.Number == active
	return &out
}

func copyRecord(rec *domain.BoundRecord) *domain.BoundRecord {
	out := *rec
	out.Values = domain.CloneValues(rec.Values)
	return &out
}

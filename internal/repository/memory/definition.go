package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
)

// DefinitionRepository handles definition and version data access
type DefinitionRepository struct {
	store *Store
}

// Create stores a new, unpublished definition
func (r *DefinitionRepository) Create(ctx context.Context, def *domain.SchemaDefinition) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.names[def.TenantID]
	if names == nil {
		names = make(map[string]uuid.UUID)
		s.names[def.TenantID] = names
	}
	if _, ok := names[def.Name]; ok {
		return fmt.Errorf("definition %q: %w", def.Name, domain.ErrDuplicateName)
	}

	defs := s.definitions[def.TenantID]
	if defs == nil {
		defs = make(map[uuid.UUID]*definitionEntry)
		s.definitions[def.TenantID] = defs
	}

	entry := &definitionEntry{}
	entry.state.Store(&definitionState{def: *def})
	defs[def.ID] = entry
	names[def.Name] = def.ID
	return nil
}

// Get retrieves a definition's pointer record
func (r *DefinitionRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	entry := r.store.definition(tenantID, id)
	if entry == nil {
		return nil, nil
	}
	st := entry.state.Load()
	if st.deleted {
		return nil, nil
	}
	def := st.def
	return &def, nil
}

// List retrieves a tenant's definitions ordered by name
func (r *DefinitionRepository) List(ctx context.Context, tenantID domain.TenantID) ([]domain.SchemaDefinition, error) {
	r.store.mu.RLock()
	entries := make([]*definitionEntry, 0, len(r.store.definitions[tenantID]))
	for _, e := range r.store.definitions[tenantID] {
		entries = append(entries, e)
	}
	r.store.mu.RUnlock()

	defs := make([]domain.SchemaDefinition, 0, len(entries))
	for _, e := range entries {
		if st := e.state.Load(); !st.deleted {
			defs = append(defs, st.def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// AppendVersion publishes v as the new active version if the pointer still
// equals expected.
func (r *DefinitionRepository) AppendVersion(ctx context.Context, tenantID domain.TenantID, expected int, v *domain.SchemaVersion) (*domain.SchemaDefinition, error) {
	if v.Number != expected+1 {
		return nil, fmt.Errorf("version number %d does not follow %d", v.Number, expected)
	}
	entry := r.store.definition(tenantID, v.DefinitionID)
	if entry == nil {
		return nil, domain.ErrNotFound
	}

	snapshot := *v
	snapshot.Structure = v.Structure.Clone()
	snapshot.Active = false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := entry.state.Load()
		if cur.deleted {
			return nil, domain.ErrNotFound
		}
		if cur.def.ActiveVersion != expected {
			return nil, fmt.Errorf("expected version %d, current is %d: %w",
				expected, cur.def.ActiveVersion, domain.ErrConcurrentModification)
		}

		next := &definitionState{
			def: cur.def,
			// Full slice expression forces a fresh backing array so readers
			// holding cur never observe the append.
			versions: append(cur.versions[:len(cur.versions):len(cur.versions)], &snapshot),
		}
		next.def.ActiveVersion = snapshot.Number
		next.def.Revision++
		next.def.UpdatedAt = snapshot.CreatedAt

		if entry.state.CompareAndSwap(cur, next) {
			def := next.def
			return &def, nil
		}
	}
}

// GetVersion retrieves one immutable snapshot
func (r *DefinitionRepository) GetVersion(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	entry := r.store.definition(tenantID, definitionID)
	if entry == nil {
		return nil, nil
	}
	st := entry.state.Load()
	if st.deleted || number < 1 || number > len(st.versions) {
		return nil, nil
	}
	return copyVersion(st.versions[number-1], st.def.ActiveVersion), nil
}

// ListVersions retrieves a definition's history in ascending order
func (r *DefinitionRepository) ListVersions(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) ([]domain.SchemaVersion, error) {
	entry := r.store.definition(tenantID, definitionID)
	if entry == nil {
		return nil, nil
	}
	st := entry.state.Load()
	if st.deleted {
		return nil, nil
	}
	versions := make([]domain.SchemaVersion, len(st.versions))
	for i, v := range st.versions {
		versions[i] = *copyVersion(v, st.def.ActiveVersion)
	}
	return versions, nil
}

// Delete removes a definition that no record is bound to
func (r *DefinitionRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	entry := r.store.definition(tenantID, id)
	if entry == nil {
		return domain.ErrNotFound
	}

	entry.bind.Lock()
	defer entry.bind.Unlock()

	if n := entry.refs.Load(); n > 0 {
		return fmt.Errorf("%d records bound: %w", n, domain.ErrInUse)
	}

	var name string
	for {
		cur := entry.state.Load()
		if cur.deleted {
			return domain.ErrNotFound
		}
		next := &definitionState{def: cur.def, versions: cur.versions, deleted: true}
		if entry.state.CompareAndSwap(cur, next) {
			name = cur.def.Name
			break
		}
	}

	r.store.mu.Lock()
	delete(r.store.definitions[tenantID], id)
	delete(r.store.names[tenantID], name)
	r.store.mu.Unlock()
	return nil
}

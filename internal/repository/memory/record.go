package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
)

// RecordRepository handles bound record data access
type RecordRepository struct {
	store *Store
}

// Create binds a new record to the version it references
func (r *RecordRepository) Create(ctx context.Context, rec *domain.BoundRecord) error {
	entry := r.store.definition(rec.TenantID, rec.DefinitionID)
	if entry == nil {
		return domain.ErrNotFound
	}

	entry.bind.RLock()
	defer entry.bind.RUnlock()

	st := entry.state.Load()
	if st.deleted {
		return domain.ErrNotFound
	}
	if rec.VersionNumber < 1 || rec.VersionNumber > len(st.versions) ||
		st.versions[rec.VersionNumber-1].ID != rec.VersionID {
		return fmt.Errorf("version %d: %w", rec.VersionNumber, domain.ErrNotFound)
	}

	re := &recordEntry{rec: *copyRecord(rec), def: entry}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	recs := r.store.records[rec.TenantID]
	if recs == nil {
		recs = make(map[uuid.UUID]*recordEntry)
		r.store.records[rec.TenantID] = recs
	}
	if _, ok := recs[rec.ID]; ok {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrDuplicateName)
	}
	recs[rec.ID] = re
	entry.refs.Add(1)
	return nil
}

// Get retrieves a record by ID
func (r *RecordRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	re := r.store.record(tenantID, id)
	if re == nil {
		return nil, nil
	}
	re.mu.Lock()
	defer re.mu.Unlock()
	if re.deleted {
		return nil, nil
	}
	return copyRecord(&re.rec), nil
}

// ListByDefinition retrieves the records bound to any version of a definition
func (r *RecordRepository) ListByDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, limit, offset int) ([]domain.BoundRecord, error) {
	r.store.mu.RLock()
	var entries []*recordEntry
	for _, re := range r.store.records[tenantID] {
		entries = append(entries, re)
	}
	r.store.mu.RUnlock()

	var recs []domain.BoundRecord
	for _, re := range entries {
		re.mu.Lock()
		if re.rec.DefinitionID == definitionID {
			recs = append(recs, *copyRecord(&re.rec))
		}
		re.mu.Unlock()
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID.String() < recs[j].ID.String()
	})

	if offset >= len(recs) {
		return []domain.BoundRecord{}, nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

// UpdateValues replaces a record's values if its revision is unchanged
func (r *RecordRepository) UpdateValues(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, values map[string]any, at time.Time) (*domain.BoundRecord, error) {
	return r.mutate(tenantID, id, expectedRevision, func(rec *domain.BoundRecord) error {
		rec.Values = domain.CloneValues(values)
		rec.UpdatedAt = at
		return nil
	})
}

// Rebind moves a record to another version of its definition if its
// revision is unchanged
func (r *RecordRepository) Rebind(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, target *domain.SchemaVersion, at time.Time) (*domain.BoundRecord, error) {
	re := r.store.record(tenantID, id)
	if re == nil {
		return nil, domain.ErrNotFound
	}
	return r.mutate(tenantID, id, expectedRevision, func(rec *domain.BoundRecord) error {
		if target.DefinitionID != rec.DefinitionID {
			return fmt.Errorf("version belongs to another definition: %w", domain.ErrNotFound)
		}
		st := re.def.state.Load()
		if target.Number < 1 || target.Number > len(st.versions) ||
			st.versions[target.Number-1].ID != target.ID {
			return fmt.Errorf("version %d: %w", target.Number, domain.ErrNotFound)
		}
		rec.VersionNumber = target.Number
		rec.VersionID = target.ID
		rec.UpdatedAt = at
		return nil
	})
}

func (r *RecordRepository) mutate(tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, apply func(*domain.BoundRecord) error) (*domain.BoundRecord, error) {
	re := r.store.record(tenantID, id)
	if re == nil {
		return nil, domain.ErrNotFound
	}
	return re.update(expectedRevision, apply)
}

// update applies apply to a copy of the record and stores it with the next
// revision. An entry removed since it was looked up is not found.
func (re *recordEntry) update(expectedRevision int64, apply func(*domain.BoundRecord) error) (*domain.BoundRecord, error) {
	re.mu.Lock()
	defer re.mu.Unlock()

	if re.deleted {
		return nil, domain.ErrNotFound
	}
	if re.rec.Revision != expectedRevision {
		return nil, fmt.Errorf("expected revision %d, current is %d: %w",
			expectedRevision, re.rec.Revision, domain.ErrConcurrentModification)
	}

	next := *copyRecord(&re.rec)
	if err := apply(&next); err != nil {
		return nil, err
	}
	next.Revision++
	re.rec = next
	return copyRecord(&next), nil
}

// Delete removes a record; its version is untouched
func (r *RecordRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	re := r.store.record(tenantID, id)
	if re == nil {
		return domain.ErrNotFound
	}

	// Holding re.mu orders the delete after any in-flight mutate and makes
	// later ones observe it.
	re.mu.Lock()
	defer re.mu.Unlock()
	if re.deleted {
		return domain.ErrNotFound
	}

	r.store.mu.Lock()
	delete(r.store.records[tenantID], id)
	r.store.mu.Unlock()

	re.deleted = true
	re.def.refs.Add(-1)
	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, tenant_id, definition_id, version_number, version_id, field_values, revision, created_at, updated_at`

// RecordRepository handles bound record data access
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create binds a new record to the version it references
func (r *RecordRepository) Create(ctx context.Context, rec *domain.BoundRecord) error {
	values, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM schema_definitions WHERE id = $1 AND tenant_id = $2 FOR KEY SHARE`,
			rec.DefinitionID, string(rec.TenantID)).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock definition: %w", err)
		}

		query := `
			INSERT INTO bound_records (` + recordColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err = tx.Exec(ctx, query,
			rec.ID,
			string(rec.TenantID),
			rec.DefinitionID,
			rec.VersionNumber,
			rec.VersionID,
			values,
			rec.Revision,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			switch pgCode(err) {
			case codeForeignKeyViolation:
				return fmt.Errorf("version %d: %w", rec.VersionNumber, domain.ErrNotFound)
			case codeUniqueViolation:
				return fmt.Errorf("record %s: %w", rec.ID, domain.ErrDuplicateName)
			}
			return fmt.Errorf("failed to create record: %w", err)
		}
		return nil
	})
}

// Get retrieves a record by ID
func (r *RecordRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM bound_records
		WHERE id = $1 AND tenant_id = $2
	`

	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, query, id, string(tenantID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListByDefinition retrieves the records bound to any version of a definition
func (r *RecordRepository) ListByDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, limit, offset int) ([]domain.BoundRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM bound_records
		WHERE tenant_id = $1 AND definition_id = $2
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool.Query(ctx, query, string(tenantID), definitionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	recs := []domain.BoundRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, *rec)
	}

	return recs, rows.Err()
}

// UpdateValues replaces a record's values if its revision is unchanged
func (r *RecordRepository) UpdateValues(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, values map[string]any, at time.Time) (*domain.BoundRecord, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal values: %w", err)
	}

	query := `
		UPDATE bound_records
		SET field_values = $4, revision = revision + 1, updated_at = $5
		WHERE id = $1 AND tenant_id = $2 AND revision = $3
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, query, id, string(tenantID), expectedRevision, data, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, tenantID, id, expectedRevision, uuid.Nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	return rec, nil
}

// Rebind moves a record to another version of its definition if its
// revision is unchanged
func (r *RecordRepository) Rebind(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, target *domain.SchemaVersion, at time.Time) (*domain.BoundRecord, error) {
	query := `
		UPDATE bound_records
		SET version_id = $5, version_number = $6, revision = revision + 1, updated_at = $7
		WHERE id = $1 AND tenant_id = $2 AND revision = $3 AND definition_id = $4
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, query,
		id, string(tenantID), expectedRevision, target.DefinitionID, target.ID, target.Number, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, tenantID, id, expectedRevision, target.DefinitionID)
	}
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return nil, fmt.Errorf("version %d: %w", target.Number, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to rebind record: %w", err)
	}

	return rec, nil
}

// explainMiss turns a conditional update that matched no row into the
// matching domain error.
func (r *RecordRepository) explainMiss(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, definitionID uuid.UUID) error {
	var revision int64
	var boundTo uuid.UUID
	err := r.db.Pool.QueryRow(ctx,
		`SELECT revision, definition_id FROM bound_records WHERE id = $1 AND tenant_id = $2`,
		id, string(tenantID)).Scan(&revision, &boundTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read record revision: %w", err)
	}
	if revision != expectedRevision {
		return fmt.Errorf("expected revision %d, current is %d: %w", expectedRevision, revision, domain.ErrConcurrentModification)
	}
	if definitionID != uuid.Nil && boundTo != definitionID {
		return fmt.Errorf("version belongs to another definition: %w", domain.ErrNotFound)
	}
	// the row changed and changed back between the update and this read
	return domain.ErrConcurrentModification
}

// Delete removes a record; its version is untouched
func (r *RecordRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM bound_records WHERE id = $1 AND tenant_id = $2`,
		id, string(tenantID))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRecord(row rowScanner) (*domain.BoundRecord, error) {
	var rec domain.BoundRecord
	var tenantID string
	var values []byte
	if err := row.Scan(
		&rec.ID,
		&tenantID,
		&rec.DefinitionID,
		&rec.VersionNumber,
		&rec.VersionID,
		&values,
		&rec.Revision,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(values, &rec.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal values: %w", err)
	}
	rec.TenantID = domain.TenantID(tenantID)
	return &rec, nil
}

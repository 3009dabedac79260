package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
)

const recordColumns = `id, tenant_id, definition_id, version_number, version_id, field_values, revision, created_at, updated_at`

// RecordRepository handles bound record data access
type RecordRepository struct {
	db *sql.DB
}

// Create binds a new record to the version it references
func (r *RecordRepository) Create(ctx context.Context, rec *domain.BoundRecord) error {
	values, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var versionID uuid.UUID
		err := tx.QueryRowContext(ctx, `
			SELECT v.id FROM schema_versions v
			JOIN schema_definitions d ON d.id = v.definition_id
			WHERE d.id = ? AND d.tenant_id = ? AND v.tenant_id = ? AND v.number = ?`,
			rec.DefinitionID, string(rec.TenantID), string(rec.TenantID), rec.VersionNumber).Scan(&versionID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && versionID != rec.VersionID) {
			return fmt.Errorf("version %d: %w", rec.VersionNumber, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve version: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bound_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.TenantID), rec.DefinitionID, rec.VersionNumber, rec.VersionID,
			string(values), rec.Revision, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("record %s: %w", rec.ID, domain.ErrDuplicateName)
			}
			return fmt.Errorf("failed to create record: %w", err)
		}
		return nil
	})
}

// Get retrieves a record by ID
func (r *RecordRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM bound_records WHERE id = ? AND tenant_id = ?`,
		id, string(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// ListByDefinition retrieves the records bound to any version of a definition
func (r *RecordRepository) ListByDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, limit, offset int) ([]domain.BoundRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM bound_records
		WHERE tenant_id = ? AND definition_id = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`,
		string(tenantID), definitionID, limit, offset)
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

	return r.conditional(ctx, tenantID, id, expectedRevision, func(tx *sql.Tx, current *domain.BoundRecord) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE bound_records SET field_values = ?, revision = revision + 1, updated_at = ?
			WHERE id = ? AND tenant_id = ?`,
			string(data), formatTime(at), id, string(tenantID))
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		return nil
	})
}

// Rebind moves a record to another version of its definition if its
// revision is unchanged
func (r *RecordRepository) Rebind(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, target *domain.SchemaVersion, at time.Time) (*domain.BoundRecord, error) {
	return r.conditional(ctx, tenantID, id, expectedRevision, func(tx *sql.Tx, current *domain.BoundRecord) error {
		if current.DefinitionID != target.DefinitionID {
			return fmt.Errorf("version belongs to another definition: %w", domain.ErrNotFound)
		}
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM schema_versions WHERE id = ? AND definition_id = ? AND tenant_id = ? AND number = ?`,
			target.ID, target.DefinitionID, string(tenantID), target.Number).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("version %d: %w", target.Number, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve version: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bound_records SET version_id = ?, version_number = ?, revision = revision + 1, updated_at = ?
			WHERE id = ? AND tenant_id = ?`,
			target.ID, target.Number, formatTime(at), id, string(tenantID))
		if err != nil {
			return fmt.Errorf("failed to rebind record: %w", err)
		}
		return nil
	})
}

// conditional runs apply inside a transaction after checking the stored
// revision, then returns the reloaded record.
func (r *RecordRepository) conditional(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, apply func(tx *sql.Tx, current *domain.BoundRecord) error) (*domain.BoundRecord, error) {
	var updated *domain.BoundRecord
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		load := func() (*domain.BoundRecord, error) {
			return scanRecord(tx.QueryRowContext(ctx,
				`SELECT `+recordColumns+` FROM bound_records WHERE id = ? AND tenant_id = ?`,
				id, string(tenantID)))
		}

		current, err := load()
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}
		if current.Revision != expectedRevision {
			return fmt.Errorf("expected revision %d, current is %d: %w",
				expectedRevision, current.Revision, domain.ErrConcurrentModification)
		}

		if err := apply(tx, current); err != nil {
			return err
		}

		if updated, err = load(); err != nil {
			return fmt.Errorf("failed to reload record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record; its version is untouched
func (r *RecordRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bound_records WHERE id = ? AND tenant_id = ?`, id, string(tenantID))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRecord(row rowScanner) (*domain.BoundRecord, error) {
	var rec domain.BoundRecord
	var tenantID, values, created, updated string
	if err := row.Scan(
		&rec.ID,
		&tenantID,
		&rec.DefinitionID,
		&rec.VersionNumber,
		&rec.VersionID,
		&values,
		&rec.Revision,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(values), &rec.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal values: %w", err)
	}
	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	rec.TenantID = domain.TenantID(tenantID)
	return &rec, nil
}

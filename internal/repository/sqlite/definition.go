package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
)

const definitionColumns = `id, tenant_id, name, description, active_version, revision, created_at, updated_at`

// DefinitionRepository handles definition and version data access
type DefinitionRepository struct {
	db *sql.DB
}

// Create stores a new, unpublished definition
func (r *DefinitionRepository) Create(ctx context.Context, def *domain.SchemaDefinition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schema_definitions (`+definitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, string(def.TenantID), def.Name, def.Description,
		def.ActiveVersion, def.Revision, formatTime(def.CreatedAt), formatTime(def.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("definition %q: %w", def.Name, domain.ErrDuplicateName)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("tenant %q: %w", def.TenantID, domain.ErrUnknownTenant)
		}
		return fmt.Errorf("failed to create definition: %w", err)
	}
	return nil
}

// Get retrieves a definition's pointer record
func (r *DefinitionRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	def, err := scanDefinition(r.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM schema_definitions WHERE id = ? AND tenant_id = ?`,
		id, string(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// List retrieves a tenant's definitions ordered by name
func (r *DefinitionRepository) List(ctx context.Context, tenantID domain.TenantID) ([]domain.SchemaDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM schema_definitions WHERE tenant_id = ? ORDER BY name`,
		string(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []domain.SchemaDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}

// AppendVersion publishes v as the new active version if the pointer still
// equals expected.
func (r *DefinitionRepository) AppendVersion(ctx context.Context, tenantID domain.TenantID, expected int, v *domain.SchemaVersion) (*domain.SchemaDefinition, error) {
	if v.Number != expected+1 {
		return nil, fmt.Errorf("version number %d does not follow %d", v.Number, expected)
	}

	structure, err := json.Marshal(v.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal structure: %w", err)
	}

	var updated *domain.SchemaDefinition
	err = inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE schema_definitions
			SET active_version = ?, revision = revision + 1, updated_at = ?
			WHERE id = ? AND tenant_id = ? AND active_version = ?`,
			v.Number, formatTime(v.CreatedAt), v.DefinitionID, string(tenantID), expected)
		if err != nil {
			return fmt.Errorf("failed to move active version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var current int
			err := tx.QueryRowContext(ctx,
				`SELECT active_version FROM schema_definitions WHERE id = ? AND tenant_id = ?`,
				v.DefinitionID, string(tenantID)).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read active version: %w", err)
			}
			return fmt.Errorf("expected version %d, current is %d: %w", expected, current, domain.ErrConcurrentModification)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schema_versions (id, definition_id, tenant_id, number, structure, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.ID, v.DefinitionID, string(tenantID), v.Number, string(structure), formatTime(v.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("version %d already exists: %w", v.Number, domain.ErrConcurrentModification)
			}
			return fmt.Errorf("failed to insert version: %w", err)
		}

		def, err := scanDefinition(tx.QueryRowContext(ctx,
			`SELECT `+definitionColumns+` FROM schema_definitions WHERE id = ? AND tenant_id = ?`,
			v.DefinitionID, string(tenantID)))
		if err != nil {
			return fmt.Errorf("failed to reload definition: %w", err)
		}
		updated = def
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

const versionSelect = `
	SELECT v.id, v.definition_id, v.tenant_id, v.number, v.structure, v.created_at, d.active_version
	FROM schema_versions v
	JOIN schema_definitions d ON d.id = v.definition_id AND d.tenant_id = v.tenant_id
`

// GetVersion retrieves one immutable snapshot
func (r *DefinitionRepository) GetVersion(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx,
		versionSelect+`WHERE v.definition_id = ? AND v.tenant_id = ? AND v.number = ?`,
		definitionID, string(tenantID), number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// ListVersions retrieves a definition's history in ascending order
func (r *DefinitionRepository) ListVersions(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) ([]domain.SchemaVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		versionSelect+`WHERE v.definition_id = ? AND v.tenant_id = ? ORDER BY v.number`,
		definitionID, string(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.SchemaVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Delete removes a definition and its versions unless a record is bound to it
func (r *DefinitionRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var bound int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bound_records WHERE definition_id = ? AND tenant_id = ?`,
			id, string(tenantID)).Scan(&bound); err != nil {
			return fmt.Errorf("failed to count bound records: %w", err)
		}

		if bound > 0 {
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM schema_definitions WHERE id = ? AND tenant_id = ?`,
				id, string(tenantID)).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read definition: %w", err)
			}
			return fmt.Errorf("%d records bound: %w", bound, domain.ErrInUse)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM schema_definitions WHERE id = ? AND tenant_id = ?`,
			id, string(tenantID))
		if err != nil {
			return fmt.Errorf("failed to delete definition: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func scanDefinition(row rowScanner) (*domain.SchemaDefinition, error) {
	var def domain.SchemaDefinition
	var tenantID, created, updated string
	if err := row.Scan(
		&def.ID,
		&tenantID,
		&def.Name,
		&def.Description,
		&def.ActiveVersion,
		&def.Revision,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	var err error
	if def.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if def.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	def.TenantID = domain.TenantID(tenantID)
	return &def, nil
}

func scanVersion(row rowScanner) (*domain.SchemaVersion, error) {
	var v domain.SchemaVersion
	var tenantID, structure, created string
	var active int
	if err := row.Scan(
		&v.ID,
		&v.DefinitionID,
		&tenantID,
		&v.Number,
		&structure,
		&created,
		&active,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(structure), &v.Structure); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structure: %w", err)
	}
	var err error
	if v.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	v.TenantID = domain.TenantID(tenantID)
	v.Active = v.Number == active
	return &v, nil
}

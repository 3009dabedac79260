package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const definitionColumns = `id, tenant_id, name, description, active_version, revision, created_at, updated_at`

// DefinitionRepository handles definition and version data access
type DefinitionRepository struct {
	db *DB
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Create stores a new, unpublished definition
func (r *DefinitionRepository) Create(ctx context.Context, def *domain.SchemaDefinition) error {
	query := `
		INSERT INTO schema_definitions (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		def.ID,
		string(def.TenantID),
		def.Name,
		def.Description,
		def.ActiveVersion,
		def.Revision,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return fmt.Errorf("definition %q: %w", def.Name, domain.ErrDuplicateName)
		case codeForeignKeyViolation:
			return fmt.Errorf("tenant %q: %w", def.TenantID, domain.ErrUnknownTenant)
		}
		return fmt.Errorf("failed to create definition: %w", err)
	}

	return nil
}

// Get retrieves a definition's pointer record
func (r *DefinitionRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM schema_definitions
		WHERE id = $1 AND tenant_id = $2
	`

	def, err := scanDefinition(r.db.Pool.QueryRow(ctx, query, id, string(tenantID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	return def, nil
}

// List retrieves a tenant's definitions ordered by name
func (r *DefinitionRepository) List(ctx context.Context, tenantID domain.TenantID) ([]domain.SchemaDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM schema_definitions
		WHERE tenant_id = $1
		ORDER BY name
	`

	rows, err := r.db.Pool.Query(ctx, query, string(tenantID))
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
// equals expected. The pointer update and the insert commit together.
func (r *DefinitionRepository) AppendVersion(ctx context.Context, tenantID domain.TenantID, expected int, v *domain.SchemaVersion) (*domain.SchemaDefinition, error) {
	if v.Number != expected+1 {
		return nil, fmt.Errorf("version number %d does not follow %d", v.Number, expected)
	}

	structure, err := json.Marshal(v.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal structure: %w", err)
	}

	var updated *domain.SchemaDefinition
	err = r.db.InTx(ctx, func(tx pgx.Tx) error {
		// The row lock taken here makes a concurrent publisher with the same
		// expectation re-evaluate the predicate and miss.
		query := `
			UPDATE schema_definitions
			SET active_version = $3, revision = revision + 1, updated_at = $4
			WHERE id = $1 AND tenant_id = $2 AND active_version = $5
			RETURNING ` + definitionColumns

		def, err := scanDefinition(tx.QueryRow(ctx, query,
			v.DefinitionID, string(tenantID), v.Number, v.CreatedAt, expected))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.explainMiss(ctx, tx, tenantID, v.DefinitionID, expected)
		}
		if err != nil {
			return fmt.Errorf("failed to move active version: %w", err)
		}

		insert := `
			INSERT INTO schema_versions (id, definition_id, tenant_id, number, structure, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, insert,
			v.ID, v.DefinitionID, string(tenantID), v.Number, structure, v.CreatedAt); err != nil {
			if pgCode(err) == codeUniqueViolation {
				return fmt.Errorf("version %d already exists: %w", v.Number, domain.ErrConcurrentModification)
			}
			return fmt.Errorf("failed to insert version: %w", err)
		}

		updated = def
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *DefinitionRepository) explainMiss(ctx context.Context, tx pgx.Tx, tenantID domain.TenantID, id uuid.UUID, expected int) error {
	var current int
	err := tx.QueryRow(ctx,
		`SELECT active_version FROM schema_definitions WHERE id = $1 AND tenant_id = $2`,
		id, string(tenantID)).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read active version: %w", err)
	}
	return fmt.Errorf("expected version %d, current is %d: %w", expected, current, domain.ErrConcurrentModification)
}

const versionSelect = `
	SELECT v.id, v.definition_id, v.tenant_id, v.number, v.structure, v.created_at, d.active_version
	FROM schema_versions v
	JOIN schema_definitions d ON d.id = v.definition_id AND d.tenant_id = v.tenant_id
`

// GetVersion retrieves one immutable snapshot
func (r *DefinitionRepository) GetVersion(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	query := versionSelect + `WHERE v.definition_id = $1 AND v.tenant_id = $2 AND v.number = $3`

	v, err := scanVersion(r.db.Pool.QueryRow(ctx, query, definitionID, string(tenantID), number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return v, nil
}

// ListVersions retrieves a definition's history in ascending order
func (r *DefinitionRepository) ListVersions(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) ([]domain.SchemaVersion, error) {
	query := versionSelect + `WHERE v.definition_id = $1 AND v.tenant_id = $2 ORDER BY v.number`

	rows, err := r.db.Pool.Query(ctx, query, definitionID, string(tenantID))
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
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		// FOR UPDATE conflicts with the FOR KEY SHARE taken by record
		// creation, so no record can be bound between the check and the delete.
		var locked uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM schema_definitions WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
			id, string(tenantID)).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock definition: %w", err)
		}

		var bound int64
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM bound_records WHERE definition_id = $1 AND tenant_id = $2`,
			id, string(tenantID)).Scan(&bound); err != nil {
			return fmt.Errorf("failed to count bound records: %w", err)
		}
		if bound > 0 {
			return fmt.Errorf("%d records bound: %w", bound, domain.ErrInUse)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM schema_definitions WHERE id = $1 AND tenant_id = $2`,
			id, string(tenantID)); err != nil {
			return fmt.Errorf("failed to delete definition: %w", err)
		}
		return nil
	})
}

func scanDefinition(row rowScanner) (*domain.SchemaDefinition, error) {
	var def domain.SchemaDefinition
	var tenantID string
	if err := row.Scan(
		&def.ID,
		&tenantID,
		&def.Name,
		&def.Description,
		&def.ActiveVersion,
		&def.Revision,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return nil, err
	}
	def.TenantID = domain.TenantID(tenantID)
	return &def, nil
}

func scanVersion(row rowScanner) (*domain.SchemaVersion, error) {
	var v domain.SchemaVersion
	var tenantID string
	var structure []byte
	var active int
	if err := row.Scan(
		&v.ID,
		&v.DefinitionID,
		&tenantID,
		&v.Number,
		&structure,
		&v.CreatedAt,
		&active,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(structure, &v.Structure); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structure: %w", err)
	}
	v.TenantID = domain.TenantID(tenantID)
	v.Active = v.Number == active
	return &v, nil
}

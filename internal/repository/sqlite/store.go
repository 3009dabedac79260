// Package sqlite is the embedded single-file storage engine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const ddl = `
CREATE TABLE IF NOT EXISTS tenants (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_definitions (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL REFERENCES tenants(id),
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    active_version  INTEGER NOT NULL DEFAULT 0,
    revision        INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS schema_versions (
    id              TEXT PRIMARY KEY,
    definition_id   TEXT NOT NULL REFERENCES schema_definitions(id) ON DELETE CASCADE,
    tenant_id       TEXT NOT NULL,
    number          INTEGER NOT NULL CHECK (number > 0),
    structure       TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    UNIQUE (definition_id, number)
);

CREATE TABLE IF NOT EXISTS bound_records (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    definition_id   TEXT NOT NULL,
    version_id      TEXT NOT NULL REFERENCES schema_versions(id),
    version_number  INTEGER NOT NULL,
    field_values    TEXT NOT NULL,
    revision        INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bound_records_definition ON bound_records(tenant_id, definition_id, created_at);

CREATE TRIGGER IF NOT EXISTS schema_versions_immutable
BEFORE UPDATE ON schema_versions
BEGIN
    SELECT RAISE(ABORT, 'schema_versions rows are immutable');
END;
`

// Store is a SQLite-backed storage engine
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises every transaction, which is what gives
	// publish and delete their atomicity here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Tenants() domain.TenantRepository         { return &TenantRepository{db: s.db} }
func (s *Store) Definitions() domain.DefinitionRepository { return &DefinitionRepository{db: s.db} }
func (s *Store) Records() domain.RecordRepository         { return &RecordRepository{db: s.db} }

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// TenantRepository handles tenant data access
type TenantRepository struct {
	db *sql.DB
}

// Create registers a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		string(tenant.ID), tenant.Name, formatTime(tenant.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.ID, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// Get retrieves a tenant by ID
func (r *TenantRepository) Get(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	tenant, err := scanTenant(r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// List retrieves all tenants ordered by ID
func (r *TenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, rows.Err()
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var tenant domain.Tenant
	var id, created string
	if err := row.Scan(&id, &tenant.Name, &created); err != nil {
		return nil, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	tenant.ID = domain.TenantID(id)
	tenant.CreatedAt = ts
	return &tenant, nil
}

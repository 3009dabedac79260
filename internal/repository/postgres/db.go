package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB wraps the database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection pool
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	return Connect(ctx, cfg.DSN(), cfg.MaxConns, cfg.MinConns)
}

// Connect creates a connection pool for dsn
func Connect(ctx context.Context, dsn string, maxConns, minConns int32) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InTx runs fn inside a transaction, committing only if fn succeeds
func (db *DB) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Store exposes the postgres repositories behind one handle
type Store struct {
	db *DB
}

// NewStore wraps an open pool
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Tenants() domain.TenantRepository         { return NewTenantRepository(s.db) }
func (s *Store) Definitions() domain.DefinitionRepository { return NewDefinitionRepository(s.db) }
func (s *Store) Records() domain.RecordRepository         { return NewRecordRepository(s.db) }

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

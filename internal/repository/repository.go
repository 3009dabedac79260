// Package repository selects and opens a storage engine.
package repository

import (
	"context"
	"fmt"

	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/repository/memory"
	"github.com/Rrens/formvault/internal/repository/postgres"
	"github.com/Rrens/formvault/internal/repository/sqlite"
	"github.com/rs/zerolog/log"
)

// Store is an open storage engine
type Store interface {
	Tenants() domain.TenantRepository
	Definitions() domain.DefinitionRepository
	Records() domain.RecordRepository
	Ping(ctx context.Context) error
	Close() error
}

// Open opens the engine named by cfg.Storage.Driver
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil

	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL()); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Msg("Connected to PostgreSQL")
		return postgres.NewStore(db), nil

	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("Opened SQLite database")
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

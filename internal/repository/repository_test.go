package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Rrens/formvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: "memory"}})
		require.NoError(t, err)
		defer store.Close()
		assert.NoError(t, store.Ping(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.StorageConfig{Driver: "sqlite"},
			SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "forms.db")},
		}
		store, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()
		assert.NoError(t, store.Ping(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, &config.Config{Storage: config.StorageConfig{Driver: "mongo"}})
		assert.Error(t, err)
	})
}

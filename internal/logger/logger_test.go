package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/formvault/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	closer, err := Setup(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	closer, err = Setup(config.LoggingConfig{Level: "nonsense"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_RotatingFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	path := filepath.Join(t.TempDir(), "formvault.log")
	closer, err := Setup(config.LoggingConfig{
		Level:        "info",
		File:         path,
		MaxAge:       24 * time.Hour,
		RotationTime: time.Hour,
	})
	require.NoError(t, err)

	log.Info().Str("tenant", "wood-co").Msg("published version")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tenant":"wood-co"`)
}

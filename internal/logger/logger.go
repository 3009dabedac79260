// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rrens/formvault/internal/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger described by cfg. The returned closer
// releases the log file, if any.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rl, err := newRotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		out = zerolog.MultiLevelWriter(out, rl)
		closer = rl
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func newRotatingFile(cfg config.LoggingConfig) (*rotatelogs.RotateLogs, error) {
	opts := []rotatelogs.Option{rotatelogs.WithLinkName(cfg.File)}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}
	if cfg.RotationTime > 0 {
		opts = append(opts, rotatelogs.WithRotationTime(cfg.RotationTime))
	}

	rl, err := rotatelogs.New(cfg.File+".%Y%m%d%H%M", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return rl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

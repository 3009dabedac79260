package service

import (
	"context"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxRetryBackoff = 50 * time.Millisecond

// RetryOnConflict runs fn until it succeeds, returns an error other than
// ErrConcurrentModification, or attempts run out. fn must re-read whatever
// state it depends on; it is called with ctx unchanged.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !domain.IsRetryable(err) {
			return err
		}
		log.Debug().Int("attempt", i+1).Err(err).Msg("Retrying after conflict")

		backoff := maxRetryBackoff
		if i < 6 {
			backoff = min(time.Millisecond<<i, maxRetryBackoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

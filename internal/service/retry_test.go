package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 5, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("publish: %w", domain.ErrConcurrentModification)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 5, func(ctx context.Context) error {
			calls++
			return domain.ErrInUse
		})
		assert.ErrorIs(t, err, domain.ErrInUse)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 3, func(ctx context.Context) error {
			calls++
			return domain.ErrConcurrentModification
		})
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.Equal(t, 3, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		err := RetryOnConflict(cctx, 100, func(ctx context.Context) error {
			cancel()
			return domain.ErrConcurrentModification
		})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

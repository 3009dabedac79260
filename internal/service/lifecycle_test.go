package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Records stay on the version they were created against.
func TestLifecycle_BindingSurvivesPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.definitionWith(t, woodCo, "Plank", plankV1())

	rec := f.record(t, woodCo, def.ID, map[string]any{"woodType": "oak"})
	assert.Equal(t, 1, rec.VersionNumber)

	v2, err := f.versions.PublishVersion(ctx, woodCo, def.ID, domain.VersionPublish{ExpectedVersion: 1, Structure: plankV2()})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	got, err := f.records.GetRecord(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VersionNumber)
	assert.Equal(t, rec.VersionID, got.VersionID)

	// v2 would reject this for lacking grade; v1 never required it
	res, err := f.records.UpdateRecordValues(ctx, woodCo, rec.ID, domain.RecordValuesUpdate{
		Values: map[string]any{"woodType": "pine"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.VersionNumber)

	// new records bind to v2 and are held to it
	_, err = f.records.CreateRecord(ctx, woodCo, def.ID, domain.RecordCreate{Values: map[string]any{"woodType": "pine"}})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

// A record's version survives a long run of publishes and value updates.
func TestLifecycle_BindingPermanence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.definitionWith(t, woodCo, "Plank", plankV1())
	rec := f.record(t, woodCo, def.ID, map[string]any{"woodType": "oak"})

	for n := 1; n <= 5; n++ {
		_, err := f.versions.PublishVersion(ctx, woodCo, def.ID, domain.VersionPublish{ExpectedVersion: n, Structure: plankV2()})
		require.NoError(t, err)
	}

	got, err := f.records.GetRecord(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VersionNumber)

	_, err = f.records.UpdateRecordValues(ctx, woodCo, rec.ID, domain.RecordValuesUpdate{
		Values: map[string]any{"woodType": "pine"},
	})
	assert.NoError(t, err)

	_, err = f.records.UpdateRecordValues(ctx, woodCo, rec.ID, domain.RecordValuesUpdate{
		Values: map[string]any{"woodType": "pine", "grade": "Z"},
	})
	assert.NoError(t, err, "grade is undeclared in v1, so only a warning")
}

// Two publishers both read version 1; one wins, the other retries and lands
// version 3.
func TestLifecycle_ConcurrentPublishThenRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.definitionWith(t, woodCo, "Plank", plankV1())

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.versions.PublishVersion(ctx, woodCo, def.ID, domain.VersionPublish{ExpectedVersion: 1, Structure: plankV2()})
		}(i)
	}
	close(start)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrConcurrentModification):
			lost++
		default:
			t.Fatalf("unexpected publish error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)

	var published *domain.SchemaVersion
	err := RetryOnConflict(ctx, 3, func(ctx context.Context) error {
		active, err := f.versions.GetActiveVersion(ctx, woodCo, def.ID)
		if err != nil {
			return err
		}
		published, err = f.versions.PublishVersion(ctx, woodCo, def.ID, domain.VersionPublish{
			ExpectedVersion: active.Number,
			Structure:       plankV2(),
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, published.Number)

	history, err := f.versions.ListVersions(ctx, woodCo, def.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

// Delete is refused exactly while a record is bound.
func TestLifecycle_DeleteInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unused := f.definitionWith(t, woodCo, "Offcut", plankV1())
	require.NoError(t, f.versions.DeleteDefinition(ctx, woodCo, unused.ID))
	_, err := f.versions.GetDefinition(ctx, woodCo, unused.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	def := f.definitionWith(t, woodCo, "Plank", plankV1())
	rec := f.record(t, woodCo, def.ID, map[string]any{"woodType": "oak"})

	err = f.versions.DeleteDefinition(ctx, woodCo, def.ID)
	assert.ErrorIs(t, err, domain.ErrInUse)
	assert.False(t, domain.IsRetryable(err))

	_, err = f.versions.GetActiveVersion(ctx, woodCo, def.ID)
	require.NoError(t, err, "refused delete leaves the definition intact")

	require.NoError(t, f.records.DeleteRecord(ctx, woodCo, rec.ID))
	require.NoError(t, f.versions.DeleteDefinition(ctx, woodCo, def.ID))

	_, err = f.versions.GetVersion(ctx, woodCo, def.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the name is free again
	f.definitionWith(t, woodCo, "Plank")
}

// Creating records while deleting the definition must end in one of two
// consistent states: delete refused, or no record survives.
func TestLifecycle_DeleteRacesCreate(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		ctx := context.Background()
		def := f.definitionWith(t, woodCo, "Plank", plankV1())

		start := make(chan struct{})
		var created *domain.RecordResult
		var createErr, deleteErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			created, createErr = f.records.CreateRecord(ctx, woodCo, def.ID, domain.RecordCreate{Values: map[string]any{"woodType": "oak"}})
		}()
		go func() {
			defer wg.Done()
			<-start
			deleteErr = f.versions.DeleteDefinition(ctx, woodCo, def.ID)
		}()
		close(start)
		wg.Wait()

		if deleteErr == nil {
			assert.ErrorIs(t, createErr, domain.ErrNotFound)
			assert.Nil(t, created)
			continue
		}
		assert.ErrorIs(t, deleteErr, domain.ErrInUse)
		require.NoError(t, createErr)

		got, err := f.records.GetRecord(ctx, woodCo, created.ID)
		require.NoError(t, err)
		assert.Equal(t, def.ID, got.DefinitionID)
	}
}

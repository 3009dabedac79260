// Package storetest is the behavioural contract every storage engine must
// satisfy. Engine packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is the subset of an engine the contract exercises
type Store interface {
	Tenants() domain.TenantRepository
	Definitions() domain.DefinitionRepository
	Records() domain.RecordRepository
}

// Factory returns a fresh, empty store for one subtest
type Factory func(t *testing.T) Store

const (
	woodCo  domain.TenantID = "wood-co"
	stoneCo domain.TenantID = "stone-co"
)

// Run executes the full contract against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("Tenants", func(t *testing.T) { testTenants(t, newStore(t)) })
	t.Run("DefinitionNames", func(t *testing.T) { testDefinitionNames(t, newStore(t)) })
	t.Run("PublishCompareAndSwap", func(t *testing.T) { testPublishCAS(t, newStore(t)) })
	t.Run("ConcurrentPublish", func(t *testing.T) { testConcurrentPublish(t, newStore(t)) })
	t.Run("VersionImmutability", func(t *testing.T) { testVersionImmutability(t, newStore(t)) })
	t.Run("TenantScopedLookups", func(t *testing.T) { testTenantScopedLookups(t, newStore(t)) })
	t.Run("RecordRevisions", func(t *testing.T) { testRecordRevisions(t, newStore(t)) })
	t.Run("RecordRebind", func(t *testing.T) { testRecordRebind(t, newStore(t)) })
	t.Run("RecordListing", func(t *testing.T) { testRecordListing(t, newStore(t)) })
	t.Run("BindToSupersededVersion", func(t *testing.T) { testBindToSupersededVersion(t, newStore(t)) })
	t.Run("RecordDelete", func(t *testing.T) { testRecordDelete(t, newStore(t)) })
	t.Run("DeleteInUse", func(t *testing.T) { testDeleteInUse(t, newStore(t)) })
	t.Run("DeleteSerialisedWithBinding", func(t *testing.T) { testDeleteSerialisedWithBinding(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func seedTenants(t *testing.T, s Store) {
	ctx := context.Background()
	for _, id := range []domain.TenantID{woodCo, stoneCo} {
		require.NoError(t, s.Tenants().Create(ctx, &domain.Tenant{ID: id, Name: string(id), CreatedAt: now()}))
	}
}

func createDefinition(t *testing.T, s Store, tenant domain.TenantID, name string) *domain.SchemaDefinition {
	ts := now()
	def := &domain.SchemaDefinition{
		ID:        uuid.New(),
		TenantID:  tenant,
		Name:      name,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	require.NoError(t, s.Definitions().Create(context.Background(), def))
	return def
}

func plank(extra ...schema.Field) schema.Structure {
	fields := append([]schema.Field{schema.Enum("woodType", true, "oak", "pine")}, extra...)
	return schema.Structure{Fields: fields}
}

func newVersion(def *domain.SchemaDefinition, number int, s schema.Structure) *domain.SchemaVersion {
	return &domain.SchemaVersion{
		ID:           uuid.New(),
		DefinitionID: def.ID,
		TenantID:     def.TenantID,
		Number:       number,
		Structure:    s,
		CreatedAt:    now(),
	}
}

func publish(t *testing.T, s Store, def *domain.SchemaDefinition, expected int, st schema.Structure) *domain.SchemaVersion {
	v := newVersion(def, expected+1, st)
	_, err := s.Definitions().AppendVersion(context.Background(), def.TenantID, expected, v)
	require.NoError(t, err)
	return v
}

func bind(t *testing.T, s Store, v *domain.SchemaVersion, values map[string]any) *domain.BoundRecord {
	ts := now()
	rec := &domain.BoundRecord{
		ID:            uuid.New(),
		TenantID:      v.TenantID,
		DefinitionID:  v.DefinitionID,
		VersionNumber: v.Number,
		VersionID:     v.ID,
		Values:        values,
		Revision:      1,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	require.NoError(t, s.Records().Create(context.Background(), rec))
	return rec
}

func testTenants(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)

	err := s.Tenants().Create(ctx, &domain.Tenant{ID: woodCo, Name: "again", CreatedAt: now()})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	got, err := s.Tenants().Get(ctx, woodCo)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "wood-co", got.Name)

	missing, err := s.Tenants().Get(ctx, "glass-co")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.Tenants().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, stoneCo, all[0].ID)
	assert.Equal(t, woodCo, all[1].ID)
}

func testDefinitionNames(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)

	def := createDefinition(t, s, woodCo, "Plank")

	dup := *def
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.Definitions().Create(ctx, &dup), domain.ErrDuplicateName)

	// names are scoped per tenant
	createDefinition(t, s, stoneCo, "Plank")
	createDefinition(t, s, woodCo, "Beam")

	got, err := s.Definitions().Get(ctx, woodCo, def.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.ActiveVersion)
	assert.Equal(t, "Plank", got.Name)

	list, err := s.Definitions().List(ctx, woodCo)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Beam", list[0].Name)
	assert.Equal(t, "Plank", list[1].Name)

	// a deleted name can be reused
	require.NoError(t, s.Definitions().Delete(ctx, woodCo, def.ID))
	createDefinition(t, s, woodCo, "Plank")
}

func testPublishCAS(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")

	v1 := newVersion(def, 1, plank())
	updated, err := s.Definitions().AppendVersion(ctx, woodCo, 0, v1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ActiveVersion)
	assert.Greater(t, updated.Revision, def.Revision)

	stale := newVersion(def, 1, plank())
	_, err = s.Definitions().AppendVersion(ctx, woodCo, 0, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	publish(t, s, def, 1, plank(schema.Enum("grade", true, "A", "B", "C")))

	got, err := s.Definitions().Get(ctx, woodCo, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ActiveVersion)

	versions, err := s.Definitions().ListVersions(ctx, woodCo, def.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Number)
	assert.False(t, versions[0].Active)
	assert.Equal(t, 2, versions[1].Number)
	assert.True(t, versions[1].Active)

	_, err = s.Definitions().AppendVersion(ctx, woodCo, 0, newVersion(&domain.SchemaDefinition{ID: uuid.New(), TenantID: woodCo}, 1, plank()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentPublish(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")

	const publishers = 8
	const perPublisher = 5

	var wg sync.WaitGroup
	errs := make(chan error, publishers)
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for done := 0; done < perPublisher; {
				cur, err := s.Definitions().Get(ctx, woodCo, def.ID)
				if err != nil {
					errs <- err
					return
				}
				_, err = s.Definitions().AppendVersion(ctx, woodCo, cur.ActiveVersion, newVersion(def, cur.ActiveVersion+1, plank()))
				switch {
				case err == nil:
					done++
				case errors.Is(err, domain.ErrConcurrentModification):
				default:
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := s.Definitions().ListVersions(ctx, woodCo, def.ID)
	require.NoError(t, err)
	require.Len(t, versions, publishers*perPublisher)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Number)
		assert.Equal(t, i == len(versions)-1, v.Active)
	}
}

func testVersionImmutability(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	publish(t, s, def, 0, plank())

	first, err := s.Definitions().GetVersion(ctx, woodCo, def.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.Active)

	// mutating a returned snapshot must not leak into storage
	first.Structure.Fields[0].Values[0] = "birch"
	first.Structure.Fields = append(first.Structure.Fields, schema.Primitive("length", schema.TypeNumber, false))

	publish(t, s, def, 1, plank(schema.Enum("grade", true, "A", "B", "C")))

	again, err := s.Definitions().GetVersion(ctx, woodCo, def.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, plank(), again.Structure)
	assert.False(t, again.Active)

	missing, err := s.Definitions().GetVersion(ctx, woodCo, def.ID, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testTenantScopedLookups(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	v := publish(t, s, def, 0, plank())
	rec := bind(t, s, v, map[string]any{"woodType": "oak"})

	got, err := s.Definitions().Get(ctx, stoneCo, def.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	version, err := s.Definitions().GetVersion(ctx, stoneCo, def.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, version)

	versions, err := s.Definitions().ListVersions(ctx, stoneCo, def.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	list, err := s.Definitions().List(ctx, stoneCo)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Definitions().AppendVersion(ctx, stoneCo, 1, &domain.SchemaVersion{
		ID: uuid.New(), DefinitionID: def.ID, TenantID: stoneCo, Number: 2, Structure: plank(), CreatedAt: now(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Definitions().Delete(ctx, stoneCo, def.ID), domain.ErrNotFound)

	gotRec, err := s.Records().Get(ctx, stoneCo, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRec)

	_, err = s.Records().UpdateValues(ctx, stoneCo, rec.ID, 1, map[string]any{"woodType": "pine"}, now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Records().Delete(ctx, stoneCo, rec.ID), domain.ErrNotFound)

	// a record cannot be bound across tenants
	foreign := &domain.BoundRecord{
		ID: uuid.New(), TenantID: stoneCo, DefinitionID: def.ID, VersionNumber: 1, VersionID: v.ID,
		Values: map[string]any{"woodType": "oak"}, Revision: 1, CreatedAt: now(), UpdatedAt: now(),
	}
	assert.ErrorIs(t, s.Records().Create(ctx, foreign), domain.ErrNotFound)

	still, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.Equal(t, "oak", still.Values["woodType"])
}

func testRecordRevisions(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	v := publish(t, s, def, 0, plank())

	bad := &domain.BoundRecord{
		ID: uuid.New(), TenantID: woodCo, DefinitionID: def.ID, VersionNumber: 1, VersionID: uuid.New(),
		Values: map[string]any{}, Revision: 1, CreatedAt: now(), UpdatedAt: now(),
	}
	assert.ErrorIs(t, s.Records().Create(ctx, bad), domain.ErrNotFound)

	rec := bind(t, s, v, map[string]any{"woodType": "oak", "tags": []any{"a"}})

	got, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, v.ID, got.VersionID)

	got.Values["woodType"] = "birch"
	got.Values["tags"].([]any)[0] = "b"
	again, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "oak", again.Values["woodType"])
	assert.Equal(t, []any{"a"}, again.Values["tags"])

	updated, err := s.Records().UpdateValues(ctx, woodCo, rec.ID, 1, map[string]any{"woodType": "pine"}, now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, "pine", updated.Values["woodType"])

	_, err = s.Records().UpdateValues(ctx, woodCo, rec.ID, 1, map[string]any{"woodType": "oak"}, now())
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	_, err = s.Records().UpdateValues(ctx, woodCo, uuid.New(), 1, map[string]any{}, now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testRecordRebind(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	v1 := publish(t, s, def, 0, plank())
	v2 := publish(t, s, def, 1, plank(schema.Enum("grade", false, "A", "B")))
	rec := bind(t, s, v1, map[string]any{"woodType": "oak"})

	other := createDefinition(t, s, woodCo, "Beam")
	ov := publish(t, s, other, 0, plank())

	_, err := s.Records().Rebind(ctx, woodCo, rec.ID, 1, ov, now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rebound, err := s.Records().Rebind(ctx, woodCo, rec.ID, 1, v2, now())
	require.NoError(t, err)
	assert.Equal(t, 2, rebound.VersionNumber)
	assert.Equal(t, v2.ID, rebound.VersionID)
	assert.Equal(t, int64(2), rebound.Revision)

	_, err = s.Records().Rebind(ctx, woodCo, rec.ID, 1, v1, now())
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	got, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.VersionNumber)
}

func testRecordListing(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	other := createDefinition(t, s, woodCo, "Beam")
	v := publish(t, s, def, 0, plank())
	ov := publish(t, s, other, 0, plank())

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, bind(t, s, v, map[string]any{"woodType": "oak"}).ID)
	}
	bind(t, s, ov, map[string]any{"woodType": "pine"})

	all, err := s.Records().ListByDefinition(ctx, woodCo, def.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	var got []uuid.UUID
	for _, r := range all {
		got = append(got, r.ID)
	}
	assert.ElementsMatch(t, ids, got)

	page, err := s.Records().ListByDefinition(ctx, woodCo, def.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	foreign, err := s.Records().ListByDefinition(ctx, stoneCo, def.ID, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

// A record resolved against version 1 keeps that binding even when version 2
// is published before the record is stored.
func testBindToSupersededVersion(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	v1 := publish(t, s, def, 0, plank())
	publish(t, s, def, 1, plank(schema.Enum("grade", false, "A", "B")))

	rec := bind(t, s, v1, map[string]any{"woodType": "oak"})

	got, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.VersionNumber)
	assert.Equal(t, v1.ID, got.VersionID)

	current, err := s.Definitions().Get(ctx, woodCo, def.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 2, current.ActiveVersion)
}

func testRecordDelete(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)
	def := createDefinition(t, s, woodCo, "Plank")
	v1 := publish(t, s, def, 0, plank())
	v2 := publish(t, s, def, 1, plank())
	rec := bind(t, s, v1, map[string]any{"woodType": "oak"})

	assert.ErrorIs(t, s.Records().Delete(ctx, stoneCo, rec.ID), domain.ErrNotFound)
	require.NoError(t, s.Records().Delete(ctx, woodCo, rec.ID))
	assert.ErrorIs(t, s.Records().Delete(ctx, woodCo, rec.ID), domain.ErrNotFound)

	gone, err := s.Records().Get(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, err = s.Records().UpdateValues(ctx, woodCo, rec.ID, 1, map[string]any{"woodType": "pine"}, now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Records().Rebind(ctx, woodCo, rec.ID, 1, v2, now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	left, err := s.Records().ListByDefinition(ctx, woodCo, def.ID, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func testDeleteInUse(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)

	unused := createDefinition(t, s, woodCo, "Unused")
	publish(t, s, unused, 0, plank())
	require.NoError(t, s.Definitions().Delete(ctx, woodCo, unused.ID))
	assert.ErrorIs(t, s.Definitions().Delete(ctx, woodCo, unused.ID), domain.ErrNotFound)

	gone, err := s.Definitions().GetVersion(ctx, woodCo, unused.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)

	def := createDefinition(t, s, woodCo, "Plank")
	v1 := publish(t, s, def, 0, plank())
	publish(t, s, def, 1, plank())
	rec := bind(t, s, v1, map[string]any{"woodType": "oak"})

	assert.ErrorIs(t, s.Definitions().Delete(ctx, woodCo, def.ID), domain.ErrInUse)

	still, err := s.Definitions().Get(ctx, woodCo, def.ID)
	require.NoError(t, err)
	require.NotNil(t, still)

	require.NoError(t, s.Records().Delete(ctx, woodCo, rec.ID))
	require.NoError(t, s.Definitions().Delete(ctx, woodCo, def.ID))
}

func testDeleteSerialisedWithBinding(t *testing.T, s Store) {
	ctx := context.Background()
	seedTenants(t, s)

	for round := 0; round < 10; round++ {
		def := createDefinition(t, s, woodCo, "Racy"+uuid.NewString()[:8])
		v := publish(t, s, def, 0, plank())

		var (
			wg        sync.WaitGroup
			deleteErr error
			bindErr   error
			rec       *domain.BoundRecord
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = s.Definitions().Delete(ctx, woodCo, def.ID)
		}()
		go func() {
			defer wg.Done()
			ts := now()
			rec = &domain.BoundRecord{
				ID: uuid.New(), TenantID: woodCo, DefinitionID: def.ID, VersionNumber: 1, VersionID: v.ID,
				Values: map[string]any{"woodType": "oak"}, Revision: 1, CreatedAt: ts, UpdatedAt: ts,
			}
			bindErr = s.Records().Create(ctx, rec)
		}()
		wg.Wait()

		// exactly one side wins: either the record exists and the definition
		// survived, or the definition is gone and no record was bound
		if bindErr == nil {
			assert.ErrorIs(t, deleteErr, domain.ErrInUse)
			got, err := s.Records().Get(ctx, woodCo, rec.ID)
			require.NoError(t, err)
			assert.NotNil(t, got)
		} else {
			assert.NoError(t, deleteErr)
			assert.ErrorIs(t, bindErr, domain.ErrNotFound)
		}
	}
}

package service

import (
	"context"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every operation invoked by stone-co on wood-co's objects must fail exactly
// as it does for an identifier that does not exist.
func TestIsolation_ForeignLooksMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	def := f.definitionWith(t, woodCo, "Plank", plankV1())
	rec := f.record(t, woodCo, def.ID, map[string]any{"woodType": "oak"})

	type op func(defID, recID uuid.UUID) error
	ops := map[string]op{
		"GetDefinition": func(defID, _ uuid.UUID) error {
			_, err := f.versions.GetDefinition(ctx, stoneCo, defID)
			return err
		},
		"PublishVersion": func(defID, _ uuid.UUID) error {
			_, err := f.versions.PublishVersion(ctx, stoneCo, defID, domain.VersionPublish{ExpectedVersion: 1, Structure: plankV2()})
			return err
		},
		"GetActiveVersion": func(defID, _ uuid.UUID) error {
			_, err := f.versions.GetActiveVersion(ctx, stoneCo, defID)
			return err
		},
		"GetVersion": func(defID, _ uuid.UUID) error {
			_, err := f.versions.GetVersion(ctx, stoneCo, defID, 1)
			return err
		},
		"ListVersions": func(defID, _ uuid.UUID) error {
			_, err := f.versions.ListVersions(ctx, stoneCo, defID)
			return err
		},
		"DeleteDefinition": func(defID, _ uuid.UUID) error {
			return f.versions.DeleteDefinition(ctx, stoneCo, defID)
		},
		"CreateRecord": func(defID, _ uuid.UUID) error {
			_, err := f.records.CreateRecord(ctx, stoneCo, defID, domain.RecordCreate{Values: map[string]any{"woodType": "oak"}})
			return err
		},
		"ListRecords": func(defID, _ uuid.UUID) error {
			_, err := f.records.ListRecords(ctx, stoneCo, defID, domain.RecordListParams{})
			return err
		},
		"ValidateValues": func(defID, _ uuid.UUID) error {
			_, err := f.records.ValidateValues(ctx, stoneCo, defID, map[string]any{"woodType": "oak"})
			return err
		},
		"GetRecord": func(_, recID uuid.UUID) error {
			_, err := f.records.GetRecord(ctx, stoneCo, recID)
			return err
		},
		"GetRecordView": func(_, recID uuid.UUID) error {
			_, err := f.records.GetRecordView(ctx, stoneCo, recID)
			return err
		},
		"UpdateRecordValues": func(_, recID uuid.UUID) error {
			_, err := f.records.UpdateRecordValues(ctx, stoneCo, recID, domain.RecordValuesUpdate{Values: map[string]any{"woodType": "pine"}})
			return err
		},
		"RebindRecord": func(_, recID uuid.UUID) error {
			_, err := f.records.RebindRecord(ctx, stoneCo, recID, domain.RecordRebind{Version: 1})
			return err
		},
		"DeleteRecord": func(_, recID uuid.UUID) error {
			return f.records.DeleteRecord(ctx, stoneCo, recID)
		},
	}

	for name, run := range ops {
		t.Run(name, func(t *testing.T) {
			missing := run(uuid.New(), uuid.New())
			foreign := run(def.ID, rec.ID)

			require.Error(t, foreign)
			assert.ErrorIs(t, foreign, domain.ErrNotFound)
			assert.Equal(t, missing.Error(), foreign.Error())
		})
	}

	// wood-co's data is untouched
	got, err := f.records.GetRecord(ctx, woodCo, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "oak", got.Values["woodType"])
	assert.Equal(t, int64(1), got.Revision)

	history, err := f.versions.ListVersions(ctx, woodCo, def.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIsolation_ListingsAreScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.definitionWith(t, woodCo, "Plank", plankV1())
	f.definitionWith(t, stoneCo, "Slab", plankV1())

	woodDefs, err := f.versions.ListDefinitions(ctx, woodCo)
	require.NoError(t, err)
	require.Len(t, woodDefs, 1)
	assert.Equal(t, "Plank", woodDefs[0].Name)

	stoneDefs, err := f.versions.ListDefinitions(ctx, stoneCo)
	require.NoError(t, err)
	require.Len(t, stoneDefs, 1)
	assert.Equal(t, "Slab", stoneDefs[0].Name)
}

func TestCheckOwner(t *testing.T) {
	id := uuid.New()
	assert.NoError(t, checkOwner(woodCo, woodCo, "record", id))

	err := checkOwner(woodCo, stoneCo, "record", id)
	assert.ErrorIs(t, err, domain.ErrCrossTenantAccess)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

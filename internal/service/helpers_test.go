package service

import (
	"context"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/metrics"
	"github.com/Rrens/formvault/internal/repository/memory"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	woodCo  domain.TenantID = "wood-co"
	stoneCo domain.TenantID = "stone-co"
)

type fixture struct {
	store    *memory.Store
	metrics  *metrics.Metrics
	tenants  *TenantRegistry
	versions *VersionManager
	records  *RecordBinder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	m := metrics.New()
	tenants := NewTenantRegistry(store.Tenants(), false)
	versions := NewVersionManager(tenants, store.Definitions(), nil, m)
	records := NewRecordBinder(tenants, versions, store.Records(), schema.NewValidator(schema.Lenient), m)

	ctx := context.Background()
	for _, id := range []domain.TenantID{woodCo, stoneCo} {
		_, err := tenants.Register(ctx, domain.TenantCreate{ID: id, Name: string(id)})
		require.NoError(t, err)
	}

	return &fixture{
		store:    store,
		metrics:  m,
		tenants:  tenants,
		versions: versions,
		records:  records,
	}
}

func plankV1() schema.Structure {
	return schema.Structure{
		Fields: []schema.Field{
			schema.Enum("woodType", true, "oak", "pine"),
			schema.Primitive("length", schema.TypeNumber, false),
		},
	}
}

func plankV2() schema.Structure {
	s := plankV1()
	s.Fields = append(s.Fields, schema.Enum("grade", true, "A", "B", "C"))
	return s
}

// definitionWith creates a definition for tenant and publishes structures
// in order.
func (f *fixture) definitionWith(t *testing.T, tenant domain.TenantID, name string, structures ...schema.Structure) *domain.SchemaDefinition {
	t.Helper()
	ctx := context.Background()

	def, err := f.versions.CreateDefinition(ctx, tenant, domain.DefinitionCreate{Name: name})
	require.NoError(t, err)

	for i, s := range structures {
		_, err := f.versions.PublishVersion(ctx, tenant, def.ID, domain.VersionPublish{ExpectedVersion: i, Structure: s})
		require.NoError(t, err)
	}

	def, err = f.versions.GetDefinition(ctx, tenant, def.ID)
	require.NoError(t, err)
	return def
}

func (f *fixture) record(t *testing.T, tenant domain.TenantID, defID uuid.UUID, values map[string]any) *domain.BoundRecord {
	t.Helper()
	res, err := f.records.CreateRecord(context.Background(), tenant, defID, domain.RecordCreate{Values: values})
	require.NoError(t, err)
	return res.BoundRecord
}

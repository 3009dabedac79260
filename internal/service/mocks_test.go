package service

import (
	"context"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockTenantRepository mocks the TenantRepository interface
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Get(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Tenant), args.Error(1)
}

// MockDefinitionRepository mocks the DefinitionRepository interface
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) Create(ctx context.Context, def *domain.SchemaDefinition) error {
	args := m.Called(ctx, def)
	return args.Error(0)
}

func (m *MockDefinitionRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.SchemaDefinition, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SchemaDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) List(ctx context.Context, tenantID domain.TenantID) ([]domain.SchemaDefinition, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]domain.SchemaDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) AppendVersion(ctx context.Context, tenantID domain.TenantID, expected int, v *domain.SchemaVersion) (*domain.SchemaDefinition, error) {
	args := m.Called(ctx, tenantID, expected, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SchemaDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) GetVersion(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	args := m.Called(ctx, tenantID, definitionID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SchemaVersion), args.Error(1)
}

func (m *MockDefinitionRepository) ListVersions(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) ([]domain.SchemaVersion, error) {
	args := m.Called(ctx, tenantID, definitionID)
	return args.Get(0).([]domain.SchemaVersion), args.Error(1)
}

func (m *MockDefinitionRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockRecordRepository mocks the RecordRepository interface
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Create(ctx context.Context, rec *domain.BoundRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) Get(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BoundRecord), args.Error(1)
}

func (m *MockRecordRepository) ListByDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, limit, offset int) ([]domain.BoundRecord, error) {
	args := m.Called(ctx, tenantID, definitionID, limit, offset)
	return args.Get(0).([]domain.BoundRecord), args.Error(1)
}

func (m *MockRecordRepository) UpdateValues(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, values map[string]any, at time.Time) (*domain.BoundRecord, error) {
	args := m.Called(ctx, tenantID, id, expectedRevision, values, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BoundRecord), args.Error(1)
}

func (m *MockRecordRepository) Rebind(ctx context.Context, tenantID domain.TenantID, id uuid.UUID, expectedRevision int64, target *domain.SchemaVersion, at time.Time) (*domain.BoundRecord, error) {
	args := m.Called(ctx, tenantID, id, expectedRevision, target, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BoundRecord), args.Error(1)
}

func (m *MockRecordRepository) Delete(ctx context.Context, tenantID domain.TenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockVersionCache mocks the VersionCache interface
type MockVersionCache struct {
	mock.Mock
}

func (m *MockVersionCache) Get(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID, number int) (*domain.SchemaVersion, error) {
	args := m.Called(ctx, tenantID, definitionID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SchemaVersion), args.Error(1)
}

func (m *MockVersionCache) Set(ctx context.Context, v *domain.SchemaVersion) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVersionCache) InvalidateDefinition(ctx context.Context, tenantID domain.TenantID, definitionID uuid.UUID) error {
	args := m.Called(ctx, tenantID, definitionID)
	return args.Error(0)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/metrics"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultRecordPageSize = 50
	maxRecordPageSize     = 500
)

// RecordBinder pins records to one schema version and validates their
// values against that version for as long as they live.
type RecordBinder struct {
	tenants   *TenantRegistry
	versions  *VersionManager
	records   domain.RecordRepository
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// NewRecordBinder creates a new record binder. m may be nil.
func NewRecordBinder(tenants *TenantRegistry, versions *VersionManager, records domain.RecordRepository, validator *schema.Validator, m *metrics.Metrics) *RecordBinder {
	if validator == nil {
		validator = schema.NewValidator(schema.Lenient)
	}
	return &RecordBinder{
		tenants:   tenants,
		versions:  versions,
		records:   records,
		validator: validator,
		metrics:   m,
	}
}

// CreateRecord binds values to the definition's currently active version.
// The version is resolved once; a publish that lands before the record is
// stored does not move the binding.
func (s *RecordBinder) CreateRecord(ctx context.Context, tenant domain.TenantID, definitionID uuid.UUID, input domain.RecordCreate) (res *domain.RecordResult, err error) {
	defer func() { s.metrics.ObserveRecordOp("create", err) }()

	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	active, err := s.versions.GetActiveVersion(ctx, tenant, definitionID)
	if err != nil {
		return nil, err
	}

	result, err := s.check(active, input.Values)
	if err != nil {
		return nil, err
	}

	ts := now()
	rec := &domain.BoundRecord{
		ID:            uuid.New(),
		TenantID:      tenant,
		DefinitionID:  definitionID,
		VersionNumber: active.Number,
		VersionID:     active.ID,
		Values:        domain.CloneValues(input.Values),
		Revision:      1,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	if err := s.records.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	log.Debug().
		Str("tenant", tenant.String()).
		Str("record_id", rec.ID.String()).
		Int("version", rec.VersionNumber).
		Msg("Record bound")
	return &domain.RecordResult{BoundRecord: rec, Warnings: result.Warnings}, nil
}

// UpdateRecordValues replaces a record's values after validating them
// against the record's bound version, never the active one.
func (s *RecordBinder) UpdateRecordValues(ctx context.Context, tenant domain.TenantID, id uuid.UUID, input domain.RecordValuesUpdate) (res *domain.RecordResult, err error) {
	defer func() { s.metrics.ObserveRecordOp("update", err) }()

	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	rec, bound, err := s.loadBound(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	result, err := s.check(bound, input.Values)
	if err != nil {
		return nil, err
	}

	// conditional on the revision read above, so a concurrent rebind
	// cannot pair these values with a version they were not checked against
	updated, err := s.records.UpdateValues(ctx, tenant, id, rec.Revision, domain.CloneValues(input.Values), now())
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	return &domain.RecordResult{BoundRecord: updated, Warnings: result.Warnings}, nil
}

// GetRecord retrieves a record with its bound version identity
func (s *RecordBinder) GetRecord(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	return s.loadRecord(ctx, tenant, id)
}

// GetRecordView retrieves a record together with the exact structure it is
// bound to, for rendering.
func (s *RecordBinder) GetRecordView(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.RecordView, error) {
	rec, bound, err := s.loadBound(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	return &domain.RecordView{Record: rec, Version: bound}, nil
}

// ListRecords pages through the records bound to any version of a definition
func (s *RecordBinder) ListRecords(ctx context.Context, tenant domain.TenantID, definitionID uuid.UUID, params domain.RecordListParams) ([]domain.BoundRecord, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if err := checkInput(params); err != nil {
		return nil, err
	}
	if _, err := s.versions.GetDefinition(ctx, tenant, definitionID); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit == 0 {
		limit = defaultRecordPageSize
	}
	if limit > maxRecordPageSize {
		limit = maxRecordPageSize
	}

	recs, err := s.records.ListByDefinition(ctx, tenant, definitionID, limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	for _, rec := range recs {
		if err := checkOwner(tenant, rec.TenantID, "record", rec.ID); err != nil {
			return nil, err
		}
	}
	if recs == nil {
		recs = []domain.BoundRecord{}
	}
	return recs, nil
}

// DeleteRecord removes a record. Its version is untouched.
func (s *RecordBinder) DeleteRecord(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (err error) {
	defer func() { s.metrics.ObserveRecordOp("delete", err) }()

	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return err
	}
	if _, err := s.loadRecord(ctx, tenant, id); err != nil {
		return err
	}

	if err := s.records.Delete(ctx, tenant, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// RebindRecord explicitly moves a record to another version of its
// definition. The record's current values must be valid under the target.
func (s *RecordBinder) RebindRecord(ctx context.Context, tenant domain.TenantID, id uuid.UUID, input domain.RecordRebind) (res *domain.RecordResult, err error) {
	defer func() { s.metrics.ObserveRecordOp("rebind", err) }()

	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	rec, err := s.loadRecord(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	target, err := s.versions.GetVersion(ctx, tenant, rec.DefinitionID, input.Version)
	if err != nil {
		return nil, err
	}

	result, err := s.check(target, rec.Values)
	if err != nil {
		return nil, err
	}
	if target.Number == rec.VersionNumber {
		return &domain.RecordResult{BoundRecord: rec, Warnings: result.Warnings}, nil
	}

	updated, err := s.records.Rebind(ctx, tenant, id, rec.Revision, target, now())
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to rebind record: %w", err)
	}

	log.Info().
		Str("tenant", tenant.String()).
		Str("record_id", id.String()).
		Int("from", rec.VersionNumber).
		Int("to", target.Number).
		Msg("Record rebound")
	return &domain.RecordResult{BoundRecord: updated, Warnings: result.Warnings}, nil
}

// ValidateValues checks values against the active version without storing
// anything.
func (s *RecordBinder) ValidateValues(ctx context.Context, tenant domain.TenantID, definitionID uuid.UUID, values map[string]any) (*domain.ValidationReport, error) {
	active, err := s.versions.GetActiveVersion(ctx, tenant, definitionID)
	if err != nil {
		return nil, err
	}

	result := s.validator.Validate(active.Structure, values)
	return &domain.ValidationReport{
		Version:    active.Number,
		Valid:      result.Valid(),
		Violations: result.Violations,
		Warnings:   result.Warnings,
	}, nil
}

func (s *RecordBinder) check(v *domain.SchemaVersion, values map[string]any) (schema.Result, error) {
	result := s.validator.Validate(v.Structure, values)
	if !result.Valid() {
		s.metrics.ObserveViolations(result.Violations)
		return result, domain.NewValidationError(result)
	}
	return result, nil
}

func (s *RecordBinder) loadRecord(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.BoundRecord, error) {
	rec, err := s.records.Get(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	if err := checkOwner(tenant, rec.TenantID, "record", rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// loadBound loads a record and the version it is bound to.
func (s *RecordBinder) loadBound(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.BoundRecord, *domain.SchemaVersion, error) {
	if err := s.tenants.Resolve(ctx, tenant); err != nil {
		return nil, nil, err
	}
	rec, err := s.loadRecord(ctx, tenant, id)
	if err != nil {
		return nil, nil, err
	}

	v, err := s.versions.GetVersion(ctx, tenant, rec.DefinitionID, rec.VersionNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bound version: %w", err)
	}
	if v.ID != rec.VersionID {
		return nil, nil, fmt.Errorf("record %s bound to version %s, found %s", rec.ID, rec.VersionID, v.ID)
	}
	return rec, v, nil
}

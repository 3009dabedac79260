package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		message   string
		retryable bool
	}{
		{"not found", fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound, "not found", false},
		{"cross tenant", domain.ErrCrossTenantAccess, http.StatusNotFound, "not found", false},
		{"conflict", domain.ErrConcurrentModification, http.StatusConflict, "concurrent modification", true},
		{"duplicate", domain.ErrDuplicateName, http.StatusConflict, "duplicate name", false},
		{"in use", domain.ErrInUse, http.StatusConflict, "in use", false},
		{"unknown tenant", domain.ErrUnknownTenant, http.StatusForbidden, "unknown tenant", false},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body errorEnvelope
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.Equal(t, tt.retryable, body.Error.Retryable)
		})
	}
}

func TestFromError_Validation(t *testing.T) {
	result := schema.Result{Violations: []schema.Violation{
		{Path: "woodType", Kind: schema.MissingRequired},
		{Path: "length", Kind: schema.WrongType},
	}}
	rec := httptest.NewRecorder()
	FromError(rec, domain.NewValidationError(result))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Error.Violations, 2)
	assert.Equal(t, "woodType", body.Error.Violations[0].Path)
	assert.Equal(t, "length", body.Error.Violations[1].Path)
}

func TestFromError_Structure(t *testing.T) {
	err := &domain.StructureError{StructureError: &schema.StructureError{
		Problems: []schema.Problem{{Path: "fields[0]", Message: "enum declares no values"}},
	}}
	rec := httptest.NewRecorder()
	FromError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Error.Problems, 1)
}

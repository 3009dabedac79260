package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&domain.ValidationError{}, "invalid"},
		{fmt.Errorf("publish: %w", domain.ErrConcurrentModification), "conflict"},
		{domain.ErrCrossTenantAccess, "not_found"},
		{domain.ErrInUse, "in_use"},
		{fmt.Errorf("boom"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestObservers(t *testing.T) {
	m := New()

	m.ObservePublish(nil)
	m.ObservePublish(nil)
	m.ObservePublish(domain.ErrConcurrentModification)
	m.ObserveRecordOp("create", nil)
	m.ObserveRecordOp("create", &domain.ValidationError{})
	m.ObserveViolations([]schema.Violation{
		{Path: "woodType", Kind: schema.MissingRequired},
		{Path: "length", Kind: schema.WrongType},
		{Path: "grade", Kind: schema.MissingRequired},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VersionsPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordOperations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordOperations.WithLabelValues("create", "invalid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ValidationViolations.WithLabelValues(string(schema.MissingRequired))))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePublish(nil)
		m.ObserveRecordOp("get", nil)
		m.ObserveViolations([]schema.Violation{{Kind: schema.WrongType}})
	})
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/definitions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/definitions/%d", i), nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/definitions/{id}", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "formvault_http_requests_total")
}

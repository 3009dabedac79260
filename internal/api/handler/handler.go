// Package handler holds the HTTP handlers of the /api/v1 surface.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Rrens/formvault/internal/api/middleware"
	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON request body into dst and checks its tags.
// Numbers are kept as json.Number so record values survive unrounded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

// tenantFrom returns the authenticated tenant, writing 401 when there is none.
func tenantFrom(w http.ResponseWriter, r *http.Request) (domain.TenantID, bool) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
	}
	return tenant, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		// an unparseable id cannot name anything
		response.NotFound(w, response.ErrorBody{Message: "not found"})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

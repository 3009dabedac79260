package handler

import (
	"net/http"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/service"
)

// TenantHandler handles tenant endpoints
type TenantHandler struct {
	registry *service.TenantRegistry
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(registry *service.TenantRegistry) *TenantHandler {
	return &TenantHandler{registry: registry}
}

// Register handles tenant registration
func (h *TenantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.TenantCreate
	if !decodeBody(w, r, &input) {
		return
	}

	tenant, err := h.registry.Register(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, tenant)
}

// List handles listing all tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.registry.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	if tenants == nil {
		tenants = []domain.Tenant{}
	}

	response.OK(w, tenants)
}

// Current returns the caller's own tenant
func (h *TenantHandler) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	if err := h.registry.Resolve(r.Context(), tenantID); err != nil {
		response.FromError(w, err)
		return
	}

	tenant, err := h.registry.Get(r.Context(), tenantID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, tenant)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/service"
	"github.com/go-chi/chi/v5"
)

// DefinitionHandler handles definition and version endpoints
type DefinitionHandler struct {
	versions *service.VersionManager
}

// NewDefinitionHandler creates a new definition handler
func NewDefinitionHandler(versions *service.VersionManager) *DefinitionHandler {
	return &DefinitionHandler{versions: versions}
}

// Create handles definition creation
func (h *DefinitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var input domain.DefinitionCreate
	if !decodeBody(w, r, &input) {
		return
	}

	def, err := h.versions.CreateDefinition(r.Context(), tenant, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, def)
}

// List handles listing the tenant's definitions
func (h *DefinitionHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	defs, err := h.versions.ListDefinitions(r.Context(), tenant)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if defs == nil {
		defs = []domain.SchemaDefinition{}
	}

	response.OK(w, defs)
}

// Get handles getting a definition by ID
func (h *DefinitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	def, err := h.versions.GetDefinition(r.Context(), tenant, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, def)
}

// Delete handles deleting a definition and its history
func (h *DefinitionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	if err := h.versions.DeleteDefinition(r.Context(), tenant, id); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// Publish handles publishing a new version
func (h *DefinitionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	var input domain.VersionPublish
	if !decodeBody(w, r, &input) {
		return
	}

	v, err := h.versions.PublishVersion(r.Context(), tenant, id, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, v)
}

// ListVersions handles listing a definition's history
func (h *DefinitionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	versions, err := h.versions.ListVersions(r.Context(), tenant, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, versions)
}

// GetActive handles getting the version new records bind to
func (h *DefinitionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	v, err := h.versions.GetActiveVersion(r.Context(), tenant, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, v)
}

// GetVersion handles getting one historical version
func (h *DefinitionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		response.BadRequest(w, "invalid version number")
		return
	}

	v, err := h.versions.GetVersion(r.Context(), tenant, id, number)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, v)
}

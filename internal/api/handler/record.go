package handler

import (
	"net/http"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/service"
)

// RecordHandler handles record endpoints
type RecordHandler struct {
	records *service.RecordBinder
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records *service.RecordBinder) *RecordHandler {
	return &RecordHandler{records: records}
}

type validateRequest struct {
	Values map[string]any `json:"values" validate:"required"`
}

// Validate handles dry-run validation against the active version
func (h *RecordHandler) Validate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	defID, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := h.records.ValidateValues(r.Context(), tenant, defID, req.Values)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, report)
}

// Create handles record creation against the active version
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	defID, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	var input domain.RecordCreate
	if !decodeBody(w, r, &input) {
		return
	}

	res, err := h.records.CreateRecord(r.Context(), tenant, defID, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, res)
}

// List handles paging through a definition's records
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	defID, ok := uuidParam(w, r, "definitionID")
	if !ok {
		return
	}

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	recs, err := h.records.ListRecords(r.Context(), tenant, defID, domain.RecordListParams{Limit: limit, Offset: offset})
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, recs)
}

// Get handles getting a record together with the version it is bound to
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "recordID")
	if !ok {
		return
	}

	view, err := h.records.GetRecordView(r.Context(), tenant, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, view)
}

// UpdateValues handles replacing a record's values
func (h *RecordHandler) UpdateValues(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "recordID")
	if !ok {
		return
	}

	var input domain.RecordValuesUpdate
	if !decodeBody(w, r, &input) {
		return
	}

	res, err := h.records.UpdateRecordValues(r.Context(), tenant, id, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, res)
}

// Rebind handles moving a record to another version
func (h *RecordHandler) Rebind(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "recordID")
	if !ok {
		return
	}

	var input domain.RecordRebind
	if !decodeBody(w, r, &input) {
		return
	}

	res, err := h.records.RebindRecord(r.Context(), tenant, id, input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, res)
}

// Delete handles deleting a record
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "recordID")
	if !ok {
		return
	}

	if err := h.records.DeleteRecord(r.Context(), tenant, id); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

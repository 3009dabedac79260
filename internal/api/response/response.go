package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/schema"
	"github.com/rs/zerolog/log"
)

// Response represents a standard API response
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ErrorBody is the error payload for failures raised by the services
type ErrorBody struct {
	Message    string             `json:"message"`
	Retryable  bool               `json:"retryable,omitempty"`
	Violations []schema.Violation `json:"violations,omitempty"`
	Warnings   []schema.Violation `json:"warnings,omitempty"`
	Problems   []schema.Problem   `json:"problems,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(resp)
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: false,
		Error:   message,
	}

	json.NewEncoder(w).Encode(resp)
}

// FromError maps a service error onto its HTTP status and body. A
// cross-tenant access gets exactly the body of a missing object.
func FromError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		Error(w, http.StatusUnprocessableEntity, ErrorBody{
			Message:    domain.ErrValidationFailed.Error(),
			Violations: ve.Violations,
			Warnings:   ve.Warnings,
		})
		return
	}

	var se *domain.StructureError
	if errors.As(err, &se) {
		Error(w, http.StatusBadRequest, ErrorBody{
			Message:  domain.ErrInvalidStructure.Error(),
			Problems: se.Problems,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, ErrorBody{Message: "not found"})
	case errors.Is(err, domain.ErrConcurrentModification):
		Error(w, http.StatusConflict, ErrorBody{Message: domain.ErrConcurrentModification.Error(), Retryable: true})
	case errors.Is(err, domain.ErrDuplicateName):
		Error(w, http.StatusConflict, ErrorBody{Message: domain.ErrDuplicateName.Error()})
	case errors.Is(err, domain.ErrInUse):
		Error(w, http.StatusConflict, ErrorBody{Message: domain.ErrInUse.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, http.StatusBadRequest, ErrorBody{Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownTenant):
		Error(w, http.StatusForbidden, ErrorBody{Message: domain.ErrUnknownTenant.Error()})
	default:
		log.Error().Err(err).Msg("Request failed")
		Error(w, http.StatusInternalServerError, ErrorBody{Message: "internal error"})
	}
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message any) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(w http.ResponseWriter, message any) {
	Error(w, http.StatusForbidden, message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message any) {
	Error(w, http.StatusNotFound, message)
}

// TooManyRequests sends a 429 Too Many Requests response
func TooManyRequests(w http.ResponseWriter, message any) {
	Error(w, http.StatusTooManyRequests, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message any) {
	Error(w, http.StatusInternalServerError, message)
}

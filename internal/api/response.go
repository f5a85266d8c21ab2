package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/telemetry"
)

// ErrCodePayloadTooLarge is returned when an upload exceeds the size limit.
const ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeUnsupportedFormat, domain.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case domain.ErrCodeEmptyDocument, domain.ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeEmbeddingProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the error response for err and reports server-side
// failures to Sentry.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		telemetry.CaptureError(r.Context(), err)
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		Error(w, status, domain.ErrCodeInternalError, "internal error")
		return
	}

	body := ErrorBody{Code: domainErr.Code, Message: domainErr.Message, Stage: domainErr.Stage}
	if domainErr.Err != nil && status != http.StatusInternalServerError {
		body.Message += ": " + domainErr.Err.Error()
	}
	JSON(w, status, ErrorResponse{Error: body})
}

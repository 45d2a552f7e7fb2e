// Package apperr defines the error taxonomy shared by the API server and its clients.
//
// Field-level validation problems travel as FieldErrors (data, never a fault).
// Everything else is one of the sentinel errors below, wrapped with context by
// the layer that observed it and classified with errors.Is.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lms-discussions-api/internal/models"
)

var (
	// ErrValidation - user input failed one or more rules.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized - no (valid) identity on the request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - identity known but not allowed, e.g. editing someone else's comment.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound - stale or unknown reference.
	ErrNotFound = errors.New("not found")
	// ErrConflict - uniqueness conflict, e.g. a slug already taken.
	ErrConflict = errors.New("conflict")
	// ErrMaxDepth - reply would nest deeper than the thread allows.
	ErrMaxDepth = errors.New("max depth exceeded")
	// ErrServer - upstream 5xx.
	ErrServer = errors.New("server error")
	// ErrNetwork - request never got a response.
	ErrNetwork = errors.New("network error")
	// ErrTimeout - request or upload exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Codes used in API error bodies.
const (
	CodeValidation   = "validation_failed"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeMaxDepth     = "max_depth_exceeded"
	CodeTimeout      = "timeout"
	CodeInternal     = "internal"
)

// FieldErrors carries field-level validation results as an error value.
type FieldErrors []models.FormFieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrValidation) hold for FieldErrors.
func (e FieldErrors) Unwrap() error { return ErrValidation }

// AsFieldErrors extracts field errors from anywhere in err's chain.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// APIError is the machine readable part of an error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  APIError                `json:"error"`
	Errors []models.FormFieldError `json:"errors,omitempty"`
}

// HTTPStatus maps an error to a status code and a safe response body.
// Unknown errors become 500 without leaking details.
func HTTPStatus(err error) (int, ErrorResponse) {
	if fe, ok := AsFieldErrors(err); ok {
		if errors.Is(err, ErrConflict) {
			return http.StatusConflict, ErrorResponse{
				Error:  APIError{Code: CodeConflict, Message: "already exists"},
				Errors: fe,
			}
		}
		return http.StatusBadRequest, ErrorResponse{
			Error:  APIError{Code: CodeValidation, Message: "validation failed"},
			Errors: fe,
		}
	}

	switch {
	case err == nil:
		return http.StatusInternalServerError, response(CodeInternal, "internal error")
	case errors.Is(err, ErrMaxDepth):
		return http.StatusBadRequest, response(CodeMaxDepth, "reply nesting limit reached")
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, response(CodeValidation, "validation failed")
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, response(CodeUnauthorized, "authentication required")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, response(CodeForbidden, "not allowed")
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, response(CodeNotFound, "not found")
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, response(CodeConflict, "already exists")
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout, response(CodeTimeout, "request timed out")
	default:
		return http.StatusInternalServerError, response(CodeInternal, "internal error")
	}
}

func response(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// FromStatus turns a non-2xx response into a taxonomy error.
// 400 bodies with an errors list become FieldErrors.
func FromStatus(status int, body []byte) error {
	var resp ErrorResponse
	_ = json.Unmarshal(body, &resp)

	switch {
	case status == http.StatusBadRequest:
		if len(resp.Errors) > 0 {
			return FieldErrors(resp.Errors)
		}
		if resp.Error.Code == CodeMaxDepth {
			return ErrMaxDepth
		}
		return fmt.Errorf("%w: %s", ErrValidation, resp.Error.Message)
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		if len(resp.Errors) > 0 {
			return fmt.Errorf("%w: %w", ErrConflict, FieldErrors(resp.Errors))
		}
		return ErrConflict
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrServer, status)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

// Message returns the single user-visible message shown near the control
// that triggered err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMaxDepth):
		return "Replies cannot be nested any deeper."
	case errors.Is(err, ErrValidation):
		return "Please correct the highlighted fields."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, ErrNotFound):
		return "This item no longer exists."
	case errors.Is(err, ErrConflict):
		return "That value is already in use."
	case errors.Is(err, ErrTimeout):
		return "The request took too long. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Network problem. Check your connection and try again."
	default:
		return "Something went wrong on our side. Your input was kept, please retry."
	}
}

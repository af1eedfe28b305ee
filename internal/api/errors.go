// errors.go - Structured error handling for API responses
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/session"
	"github.com/plc-analyzer/backend/internal/storage"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error for documents that cannot be parsed
func NewUnprocessableError(code string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: "document could not be parsed",
		Details: cause.Error(),
	}
}

// NewTooLargeError creates a 413 error
func NewTooLargeError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "DOCUMENT_TOO_LARGE",
		Message: "document exceeds the configured size limit",
		Details: cause.Error(),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// FromError maps domain errors onto API errors. resource and id name the
// thing being looked up for not-found messages.
func FromError(err error, resource, id string) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrFileNotFound):
		return NewNotFoundError("file", id)
	case errors.Is(err, models.ErrSnapshotNotFound):
		return NewNotFoundError("snapshot", id)
	case errors.Is(err, naming.ErrRuleSetNotFound):
		return NewNotFoundError("rule set", id)
	case errors.Is(err, session.ErrAlreadyParsing):
		return NewConflictError(err.Error())
	case errors.Is(err, storage.ErrUnknownKind):
		return NewBadRequestError("unsupported file type, expected .L5X or .L5K", err)
	case errors.Is(err, naming.ErrInvalidPattern),
		errors.Is(err, naming.ErrInvalidScope),
		errors.Is(err, naming.ErrInvalidRule):
		return NewBadRequestError("invalid rule set", err)
	case errors.Is(err, parser.ErrDocumentTooLarge):
		return NewTooLargeError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "TIMEOUT", Message: "parse exceeded the configured time limit", Details: err.Error()}
	case parser.IsParseFailure(err):
		return NewUnprocessableError(codeFor(parser.KindName(err)), err)
	}
	return NewInternalError(fmt.Sprintf("%s operation failed", resource), err)
}

func codeFor(kind string) string {
	switch kind {
	case "MalformedDocument":
		return "MALFORMED_DOCUMENT"
	case "UnsupportedSchemaVersion":
		return "UNSUPPORTED_SCHEMA_VERSION"
	case "TruncatedInput":
		return "TRUNCATED_INPUT"
	}
	return "PARSE_ERROR"
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"code", apiErr.Code,
			"error", err)
	}

	// HEAD requests get no body
	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}

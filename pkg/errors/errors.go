package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrIntegrity         = errors.New("integrity check failed")
	ErrTokenInvalid      = errors.New("invalid token")
	ErrApprovalRequired  = errors.New("approval required")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// ValidationField is a single-field shorthand for Validation.
func ValidationField(field, problem string) *AppError {
	e := Validation(map[string]string{field: problem})
	e.Message = fmt.Sprintf("validation failed: %s %s", field, problem)
	return e
}

// InvalidState reports a state machine guard violation. The current
// status is always part of the message so callers can re-fetch and retry.
func InvalidState(entity, current, action string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("cannot %s %s in status %q", action, entity, current),
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"current_status": current},
	}
}

func InsufficientStock(resourceID string, available, requested int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: available %d, requested %d", available, requested),
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"resource_id": resourceID,
			"available":   fmt.Sprint(available),
			"requested":   fmt.Sprint(requested),
		},
	}
}

// ApprovalRequired rejects a direct stock reduction on an item whose
// stock-out must pass a second person.
func ApprovalRequired(resourceID, controlLevel string) *AppError {
	return &AppError{
		Err:        ErrApprovalRequired,
		Code:       "APPROVAL_REQUIRED",
		Message:    fmt.Sprintf("%s stock can only leave through an approval request", controlLevel),
		StatusCode: http.StatusForbidden,
		Details: map[string]string{
			"resource_id":   resourceID,
			"control_level": controlLevel,
			"approval_path": "/api/v1/resources/" + resourceID + "/approval-requests",
		},
	}
}

// Integrity reports a rejected QR code. reason is one of the integrity
// package's reason strings and is never collapsed into NOT_FOUND.
func Integrity(reason string) *AppError {
	return &AppError{
		Err:        ErrIntegrity,
		Code:       "INTEGRITY_FAILURE",
		Message:    fmt.Sprintf("qr code rejected: %s", reason),
		StatusCode: http.StatusBadRequest,
		Details:    map[string]string{"reason": reason},
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join re-exports errors.Join so callers need a single errors import.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

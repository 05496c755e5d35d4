package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeModelLoad          ErrorType = "model_load"
	ErrorTypeInference          ErrorType = "inference"
	ErrorTypeWorker             ErrorType = "worker"
	ErrorTypeLanguagePack       ErrorType = "language_pack"
	ErrorTypeStorageUnavailable ErrorType = "storage_unavailable"
	ErrorTypeQuotaExceeded      ErrorType = "quota_exceeded"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of e carrying extra developer-facing detail
func (e *AppError) WithDetails(details string) *AppError {
	out := *e
	out.Details = details
	return &out
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewModelLoadError is returned when an engine fails to initialize
func NewModelLoadError(message string, cause error) *AppError {
	return newError(ErrorTypeModelLoad, http.StatusServiceUnavailable, message, cause)
}

// NewInferenceError is returned when one inference call fails
func NewInferenceError(message string, cause error) *AppError {
	return newError(ErrorTypeInference, http.StatusUnprocessableEntity, message, cause)
}

// NewWorkerError is returned when the OCR background worker dies
func NewWorkerError(message string, cause error) *AppError {
	return newError(ErrorTypeWorker, http.StatusServiceUnavailable, message, cause)
}

// NewLanguagePackError is returned when a non-default OCR language fails to load
func NewLanguagePackError(message string, cause error) *AppError {
	return newError(ErrorTypeLanguagePack, http.StatusUnprocessableEntity, message, cause)
}

// NewStorageUnavailableError is returned when the persistence backend cannot be used
func NewStorageUnavailableError(message string, cause error) *AppError {
	return newError(ErrorTypeStorageUnavailable, http.StatusServiceUnavailable, message, cause)
}

// NewQuotaExceededError is returned when a write exceeds backend capacity
func NewQuotaExceededError(message string, cause error) *AppError {
	return newError(ErrorTypeQuotaExceeded, http.StatusInsufficientStorage, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewConflictError is returned when a mode is already busy
func NewConflictError(message string, cause error) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error, or any error it wraps, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

package errors

import (
	"errors"
	"fmt"
)

// Error types for different failure classes
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeIntegrity  ErrorType = "integrity"
	ErrorTypeExpired    ErrorType = "expired"
	ErrorTypeRegression ErrorType = "regression"
	ErrorTypeEncryption ErrorType = "encryption"
	ErrorTypeSLA        ErrorType = "sla"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// NewIntegrityError reports a checksum mismatch against a persisted backup.
func NewIntegrityError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeIntegrity,
		Code:       "INTEGRITY_VIOLATION",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewExpiredError reports a backup aged past its retention window.
func NewExpiredError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExpired,
		Code:       "BACKUP_EXPIRED",
		Message:    message,
		Retryable:  false,
		StatusCode: 410,
	}
}

// NewRegressionError reports a post-restore smoke-test failure.
func NewRegressionError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRegression,
		Code:       "FUNCTIONAL_REGRESSION",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewEncryptionError is fatal to the current operation only.
func NewEncryptionError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeEncryption,
		Code:       "ENCRYPTION_FAILURE",
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

// NewSLAViolationError is advisory; violations are recorded as metrics,
// never surfaced to callers.
func NewSLAViolationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeSLA,
		Code:       "SLA_VIOLATION",
		Message:    message,
		Retryable:  false,
		StatusCode: 200,
	}
}

// Predefined common errors
var (
	ErrInvalidInput      = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrBackupNotFound    = NewNotFoundError("backup")
	ErrCrisisNotFound    = NewNotFoundError("crisis event")
	ErrOperationNotFound = NewNotFoundError("emergency operation")
	ErrMigrationActive   = NewConflictError("Migration already in progress for store")
	ErrMigrationNotFound = NewNotFoundError("migration")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}

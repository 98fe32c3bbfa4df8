package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"

	// Data model errors
	ErrorTypeSchemaViolation       ErrorType = "SCHEMA_VIOLATION"
	ErrorTypePartialFanout         ErrorType = "PARTIAL_FANOUT"
	ErrorTypeAtomicGroup           ErrorType = "ATOMIC_GROUP"
	ErrorTypeUnsupportedQueryShape ErrorType = "UNSUPPORTED_QUERY_SHAPE"
	ErrorTypeDuplicateDelivery     ErrorType = "DUPLICATE_DELIVERY"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
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

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail sets a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewSchemaViolationError reports a mutation whose rows do not fit the
// registered key shape of a table. Nothing has been written when it is returned.
func NewSchemaViolationError(table, message string) *AppError {
	return newError(ErrorTypeSchemaViolation, http.StatusBadRequest,
		fmt.Sprintf("table '%s': %s", table, message)).
		WithDetail("table", table)
}

// NewPartialFanoutError reports independent fan-out targets that failed while
// others were applied. The failed set is what a caller should retry.
func NewPartialFanoutError(mutation string, failed, succeeded []string) *AppError {
	failed = sortedCopy(failed)
	succeeded = sortedCopy(succeeded)
	err := newError(ErrorTypePartialFanout, http.StatusMultiStatus,
		fmt.Sprintf("%s: %d of %d targets failed", mutation, len(failed), len(failed)+len(succeeded))).
		WithDetail("mutation", mutation).
		WithDetail("failed_targets", failed).
		WithDetail("succeeded_targets", succeeded)
	err.Retryable = true
	return err
}

// NewAtomicGroupError reports a logged-batch group that was not applied. No
// member of the group is visible; the whole group must be retried.
func NewAtomicGroupError(group string, targets []string, cause error) *AppError {
	err := newError(ErrorTypeAtomicGroup, http.StatusServiceUnavailable,
		fmt.Sprintf("atomic group '%s' was not applied", group)).
		WithDetail("group", group).
		WithDetail("targets", sortedCopy(targets)).
		WithCause(cause)
	err.Retryable = true
	return err
}

// NewUnsupportedQueryShapeError reports a read that no registered table can serve.
func NewUnsupportedQueryShapeError(shape, reason string) *AppError {
	return newError(ErrorTypeUnsupportedQueryShape, http.StatusBadRequest,
		fmt.Sprintf("unsupported query shape '%s': %s", shape, reason)).
		WithDetail("shape", shape)
}

// NewDuplicateDeliveryError reports a counter submission that was already applied.
func NewDuplicateDeliveryError(submissionID string) *AppError {
	return newError(ErrorTypeDuplicateDelivery, http.StatusOK,
		fmt.Sprintf("submission '%s' was already applied", submissionID)).
		WithDetail("submission_id", submissionID)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	err := newError(ErrorTypeTimeout, http.StatusGatewayTimeout,
		fmt.Sprintf("operation '%s' timed out", operation))
	err.Retryable = true
	return err
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	err := newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
	err.Retryable = true
	return err
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(message string) *AppError {
	err := newError(ErrorTypeRateLimit, http.StatusTooManyRequests, message)
	err.Retryable = true
	return err
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).
		WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).
		WithCause(err)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Helper functions

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsSchemaViolation checks if an error is a schema violation
func IsSchemaViolation(err error) bool {
	return IsType(err, ErrorTypeSchemaViolation)
}

// IsPartialFanout checks if an error is a partial fan-out failure
func IsPartialFanout(err error) bool {
	return IsType(err, ErrorTypePartialFanout)
}

// IsAtomicGroup checks if an error is an atomic group failure
func IsAtomicGroup(err error) bool {
	return IsType(err, ErrorTypeAtomicGroup)
}

// IsUnsupportedQueryShape checks if an error is an unsupported query shape
func IsUnsupportedQueryShape(err error) bool {
	return IsType(err, ErrorTypeUnsupportedQueryShape)
}

// IsDuplicateDelivery checks if an error reports an already-applied submission
func IsDuplicateDelivery(err error) bool {
	return IsType(err, ErrorTypeDuplicateDelivery)
}

// IsRetryable reports whether the caller may retry the failed operation unchanged
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// FailedTargets returns the failed target set carried by a fan-out error
func FailedTargets(err error) []string {
	appErr := GetAppError(err)
	if appErr == nil {
		return nil
	}
	if targets, ok := appErr.Details["failed_targets"].([]string); ok {
		return targets
	}
	if targets, ok := appErr.Details["targets"].([]string); ok && appErr.Type == ErrorTypeAtomicGroup {
		return targets
	}
	return nil
}

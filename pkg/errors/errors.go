package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode categorizes errors across the ingestion pipeline.
type ErrorCode string

const (
	// Configuration errors (1xxx)
	ErrCodeConfigNotFound   ErrorCode = "SSTR1001"
	ErrCodeConfigInvalid    ErrorCode = "SSTR1002"
	ErrCodeConfigMissingKey ErrorCode = "SSTR1003"

	// Precondition errors (2xxx)
	ErrCodePrecondition ErrorCode = "SSTR2001"
	ErrCodeInvalidInput ErrorCode = "SSTR2002"

	// Connection errors (3xxx)
	ErrCodeConnectionFailed     ErrorCode = "SSTR3001"
	ErrCodeAuthenticationFailed ErrorCode = "SSTR3002"

	// Ingestion errors (4xxx)
	ErrCodeBackpressure          ErrorCode = "SSTR4001"
	ErrCodeBackpressureExhausted ErrorCode = "SSTR4002"
	ErrCodeIngestFailed          ErrorCode = "SSTR4003"
	ErrCodeAtomicityViolation    ErrorCode = "SSTR4004"
	ErrCodeRetriesExhausted      ErrorCode = "SSTR4005"

	// SQL errors (5xxx)
	ErrCodeSQLExecution ErrorCode = "SSTR5001"

	// Reconciliation errors (6xxx)
	ErrCodeReconciliation ErrorCode = "SSTR6001"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "SSTR9001"
	ErrCodeTimeout  ErrorCode = "SSTR9002"
)

// ErrorSeverity is the severity level attached to an error.
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
)

// AppError is a structured application error with a code and context.
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Timestamp   time.Time
	Recoverable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return b.String()
}

// Unwrap returns the cause of the error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError. Returns nil for nil input.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context when wrapping another AppError.
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds a key/value pair to the error context.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity.
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// AsRecoverable marks the error as recoverable.
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// IsRecoverable reports whether an error is marked recoverable.
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code, defaulting to ErrCodeInternal.
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for errors.As(err, &appErr) {
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
		appErr = nil
		if err == nil {
			return false
		}
	}
	return false
}

// Common constructors

// ConfigError creates a configuration fault. Configuration faults are fatal
// and never retried.
func ConfigError(message string) *AppError {
	return New(ErrCodeConfigInvalid, message).WithSeverity(SeverityCritical)
}

// PreconditionError creates a precondition fault surfaced before any work
// begins (for example, an empty customer table).
func PreconditionError(message string) *AppError {
	return New(ErrCodePrecondition, message).WithSeverity(SeverityCritical)
}

// SQLError creates an SQL execution error carrying the offending statement.
func SQLError(message, query string, cause error) *AppError {
	return Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))
}

// ValidationError creates an input-validation fault.
func ValidationError(field string, value interface{}, reason string) *AppError {
	return Newf(ErrCodeInvalidInput, "validation failed for %s: %s", field, reason).
		WithContext("field", field).
		WithContext("value", value)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

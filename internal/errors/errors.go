// Package errors defines the error taxonomy shared by the analytics core.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// Kind that callers branch on: per-table query failures are Transient,
// breaker rejections are Unavailable, pattern-matched driver errors are
// Retryable, and misconfiguration is Config.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for handling and logging.
type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindNotFound    Kind = "NOT_FOUND"
	KindConfig      Kind = "CONFIG"
	KindTransient   Kind = "TRANSIENT"
	KindTimeout     Kind = "TIMEOUT"
	KindUnavailable Kind = "UNAVAILABLE"
	KindRateLimit   Kind = "RATE_LIMIT"
	KindInternal    Kind = "INTERNAL"
)

// Common error codes.
const (
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeInvalidRange      = "INVALID_DATE_RANGE"
	CodeUnknownTable      = "UNKNOWN_TABLE"
	CodeUnknownWindow     = "UNKNOWN_WINDOW"
	CodeQueryFailed       = "QUERY_FAILED"
	CodeFanOutFailed      = "FANOUT_FAILED"
	CodeQueryTimeout      = "QUERY_TIMEOUT"
	CodeCircuitOpen       = "CIRCUIT_OPEN"
	CodeQueueLimit        = "QUEUE_LIMIT"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeMappingsFailed    = "MAPPINGS_UNAVAILABLE"
	CodePanic             = "PANIC"
)

// AppError is the error type returned across package boundaries.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	Details    string
	Operation  string
	Resource   string
	Retryable  bool
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by Kind and Code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Builder constructs an AppError fluently.
type Builder struct {
	err *AppError
}

// New starts a builder for the given kind.
func New(kind Kind, code, message string) *Builder {
	return &Builder{err: &AppError{Kind: kind, Code: code, Message: message}}
}

func (b *Builder) WithDetails(details string) *Builder {
	b.err.Details = details
	return b
}

func (b *Builder) WithOperation(op string) *Builder {
	b.err.Operation = op
	return b
}

func (b *Builder) WithResource(resource string) *Builder {
	b.err.Resource = resource
	return b
}

func (b *Builder) WithRetryable(retryable bool) *Builder {
	b.err.Retryable = retryable
	return b
}

func (b *Builder) WithRetryAfter(d time.Duration) *Builder {
	b.err.Retryable = true
	b.err.RetryAfter = d
	return b
}

func (b *Builder) WithCause(cause error) *Builder {
	b.err.Cause = cause
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *AppError {
	return b.err
}

// Validation creates a validation error builder.
func Validation(code, message string) *Builder {
	return New(KindValidation, code, message)
}

// NotFound creates a not-found error builder.
func NotFound(code, message string) *Builder {
	return New(KindNotFound, code, message)
}

// Config creates a configuration error builder.
func Config(code, message string) *Builder {
	return New(KindConfig, code, message)
}

// Transient creates a transient error builder.
func Transient(code, message string) *Builder {
	return New(KindTransient, code, message)
}

// Timeout creates a retryable timeout error builder.
func Timeout(code, message string) *Builder {
	return New(KindTimeout, code, message).WithRetryable(true)
}

// Unavailable creates an unavailable error builder.
func Unavailable(code, message string) *Builder {
	return New(KindUnavailable, code, message)
}

// RateLimited creates a retryable rate-limit error builder.
func RateLimited(code, message string) *Builder {
	return New(KindRateLimit, code, message).WithRetryable(true)
}

// Internal creates an internal error builder.
func Internal(code, message string) *Builder {
	return New(KindInternal, code, message)
}

// KindOf returns the Kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsTimeout(err error) bool     { return KindOf(err) == KindTimeout }
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// IsRetryable reports whether any AppError in the chain is retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// Re-exported so callers need not import both packages.
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

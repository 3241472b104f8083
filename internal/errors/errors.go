// Package errors provides centralized error definitions and error handling utilities
// for rally. It defines domain-specific errors, semantic error types, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - ConfigurationError: invalid flag or config combinations, fatal before any worker starts
//   - VoteError: a single vote attempt could not complete (transient, never fatal)
//   - LogFileError: the activity log could not be read, parsed, locked or written
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewVoteError("browser script exited", cause).WithWorker("Parallel-2")
//	if errors.IsRetryable(err) { ... }
//
//	var logErr *errors.LogFileError
//	if errors.As(err, &logErr) && errors.Is(err, errors.ErrCorruptLog) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on the next iteration
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Configuration sentinel errors
var (
	// ErrInvalidConfig indicates that the configuration failed validation.
	ErrInvalidConfig = New("invalid configuration")
)

// Vote-related sentinel errors
var (
	// ErrTransientVote indicates that a vote attempt failed but the next one may succeed.
	ErrTransientVote = New("transient vote failure")
	// ErrVoteTimeout indicates that a vote attempt exceeded its timeout.
	ErrVoteTimeout = New("vote attempt timed out")
	// ErrVoterPanic indicates that the voter panicked during an attempt.
	ErrVoterPanic = New("voter panicked")
	// ErrEmptyResults indicates that a voter reported success without any results.
	ErrEmptyResults = New("voter reported success without results")
	// ErrTargetNotFound indicates that the target entry was absent from a snapshot.
	// It is a diagnostic condition, never returned from a vote attempt.
	ErrTargetNotFound = New("target not found in results")
)

// Activity log sentinel errors
var (
	// ErrCorruptLog indicates that an existing activity log could not be parsed.
	ErrCorruptLog = New("activity log is corrupt")
	// ErrLogLocked indicates that another process holds the activity log.
	ErrLogLocked = New("activity log is locked by another process")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RallyError is the base interface for all rally errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type RallyError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefixed renders "<kind> [k=v, ...]: message: cause".
func formatPrefixed(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigurationError represents an invalid configuration detected before
// any worker starts. It is always fatal.
//
// Example:
//
//	err := errors.NewConfigurationError("start_threads cannot exceed max_threads", nil).
//		WithField("voting.start_threads")
//	fmt.Println(err) // "configuration error [field=voting.start_threads]: start_threads cannot exceed max_threads"
type ConfigurationError struct {
	baseError
	Field string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds the offending config key to the error context.
func (e *ConfigurationError) WithField(field string) *ConfigurationError {
	e.Field = field
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	return formatPrefixed("configuration error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	if target == ErrInvalidConfig {
		return true
	}
	return e.baseError.Is(target)
}

// VoteError represents a vote attempt that could not complete. Vote errors
// are retryable by default: the worker loop logs them, counts them as a
// failed attempt and carries on after the fallback delay.
//
// Example:
//
//	err := errors.NewVoteError("script exited with status 1", cause).WithWorker("Main")
type VoteError struct {
	baseError
	WorkerID string
	Attempt  int64
}

// NewVoteError creates a new VoteError.
func NewVoteError(message string, cause error) *VoteError {
	return &VoteError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithWorker adds the worker identity to the error context.
func (e *VoteError) WithWorker(id string) *VoteError {
	e.WorkerID = id
	return e
}

// WithAttempt adds the attempt sequence number to the error context.
func (e *VoteError) WithAttempt(n int64) *VoteError {
	e.Attempt = n
	return e
}

// WithSeverity sets the error severity.
func (e *VoteError) WithSeverity(s Severity) *VoteError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *VoteError) Error() string {
	var parts []string
	if e.WorkerID != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.WorkerID))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return formatPrefixed("vote error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *VoteError) Is(target error) bool {
	if _, ok := target.(*VoteError); ok {
		return true
	}
	if target == ErrTransientVote {
		return true
	}
	return e.baseError.Is(target)
}

// LogFileError represents a failure reading, locking or writing the
// activity log. Corrupt and locked logs are fatal at startup.
//
// Example:
//
//	err := errors.NewLogFileError("parse activity log", errors.ErrCorruptLog).WithPath(path)
type LogFileError struct {
	baseError
	Path string
}

// NewLogFileError creates a new LogFileError.
func NewLogFileError(message string, cause error) *LogFileError {
	return &LogFileError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPath adds the log file path to the error context.
func (e *LogFileError) WithPath(path string) *LogFileError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *LogFileError) WithSeverity(s Severity) *LogFileError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *LogFileError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatPrefixed("activity log error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *LogFileError) Is(target error) bool {
	if _, ok := target.(*LogFileError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("target cannot be empty").WithField("voting.target")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("vote attempt", 2*time.Minute)
//	fmt.Println(err) // "timeout error: vote attempt (timeout: 2m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing RallyError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrTransientVote
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rallyErr RallyError
	if As(err, &rallyErr) {
		return rallyErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrTransientVote)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var rallyErr RallyError
	if As(err, &rallyErr) {
		return rallyErr.IsUserFacing()
	}
	return false
}

// IsFatal returns true for errors that must stop the process before or
// instead of running workers: configuration errors and activity log errors.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigurationError
	var logErr *LogFileError
	return As(err, &cfgErr) || As(err, &logErr)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RallyError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var rallyErr RallyError
	if As(err, &rallyErr) {
		return rallyErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

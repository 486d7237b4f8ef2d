// Package exception provides custom error types and error handling utilities for the
// Tidal recovery orchestrator. It standardizes errors that occur during wave execution,
// allowing them to be categorized as retryable (transient remote or store failures) or
// permanent (failures that must terminate the execution).
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// errorRegistry maps error names referenced in configuration to concrete Go error
// instances. It holds error instances (singletons) for comparison using errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error type in the registry.
// Registered error types are referenced by name in retry configuration and by the
// IsErrorOfType function, and are used for error classification.
//
// If prototype is nil or name is empty, this function will panic.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// RecoveryError is a custom error type that occurs during recovery orchestration.
// It holds the module where the error occurred, a message, the wrapped original error,
// and a flag indicating whether the error is retryable.
type RecoveryError struct {
	// Module indicates the module where the error occurred (e.g., "monitor", "persister", "matcher").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewRecoveryError creates a new RecoveryError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// isRetryable: Whether this error is retryable.
func NewRecoveryError(module, message string, originalErr error, isRetryable bool) *RecoveryError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &RecoveryError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  string(buf[:n]),
	}
}

// NewRecoveryErrorf creates a new non-retryable RecoveryError using a format string.
// An optional wrapped error is extracted from the end of the variadic arguments.
//
// Example:
// NewRecoveryErrorf("monitor", "job %s not found", jobID, sql.ErrNoRows)
// -> message: "job job-1 not found", originalErr: sql.ErrNoRows
func NewRecoveryErrorf(module, format string, a ...interface{}) *RecoveryError {
	var originalErr error
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}

	return NewRecoveryError(module, fmt.Sprintf(format, args...), originalErr, false)
}

// Taxonomy sentinel names referenced in configuration and error classification.
const (
	VersionConflictException = "VersionConflictException"
	ValidationException      = "ValidationException"
	TimeoutException         = "TimeoutException"
	TokenExpiredException    = "TokenExpiredException"
	TokenConsumedException   = "TokenConsumedException"
	TokenUnknownException    = "TokenUnknownException"
)

// ErrVersionConflict indicates an optimistic-concurrency write lost the race with a
// concurrent writer. The caller must re-read the record and re-evaluate its decision.
var ErrVersionConflict = errors.New(VersionConflictException)

// ErrValidation indicates invalid input to an operation (e.g., an empty server list).
var ErrValidation = errors.New(ValidationException)

// ErrTimeout indicates a wave or token exceeded its bounded waiting period.
var ErrTimeout = errors.New(TimeoutException)

// ErrTokenExpired indicates a callback token past its expiry was presented.
var ErrTokenExpired = errors.New(TokenExpiredException)

// ErrTokenConsumed indicates a callback token that was already consumed was presented.
var ErrTokenConsumed = errors.New(TokenConsumedException)

// ErrTokenUnknown indicates a callback token that was never issued was presented.
var ErrTokenUnknown = errors.New(TokenUnknownException)

// NewVersionConflictError creates a RecoveryError indicating an optimistic-concurrency
// conflict. The conflict itself is not retryable as-is: the caller must re-read the
// current state before deciding whether its transition still applies.
func NewVersionConflictError(module, message string, originalErr error) *RecoveryError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrVersionConflict, originalErr)
	} else {
		errToWrap = ErrVersionConflict
	}

	return NewRecoveryError(module, message, errToWrap, false)
}

// NewValidationError creates a non-retryable RecoveryError wrapping ErrValidation.
func NewValidationError(module, format string, a ...interface{}) *RecoveryError {
	return NewRecoveryError(module, fmt.Sprintf(format, a...), ErrValidation, false)
}

// NewTimeoutError creates a non-retryable RecoveryError wrapping ErrTimeout.
func NewTimeoutError(module, format string, a ...interface{}) *RecoveryError {
	return NewRecoveryError(module, fmt.Sprintf(format, a...), ErrTimeout, false)
}

// Error implements the error interface.
func (e *RecoveryError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *RecoveryError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *RecoveryError) IsRetryable() bool {
	return e.isRetryable
}

// IsRecoveryError determines if the given error is of type RecoveryError.
func IsRecoveryError(err error) bool {
	if err == nil {
		return false
	}
	var re *RecoveryError
	return errors.As(err, &re)
}

// IsTemporary determines if an error is temporary (e.g., throttling, a transient
// network failure). This function is used by retry logic.
// If it's a RecoveryError, its IsRetryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var re *RecoveryError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "rate exceeded") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

// IsPermanent determines if an error must terminate the execution (not retryable and
// not a version conflict, which is handled by re-reading).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if IsVersionConflict(err) {
		return false
	}
	return !IsTemporary(err)
}

// IsErrorOfType checks if an error matches a specified type name (string).
// It checks in order: registered sentinel errors (errors.Is), substring of the error
// message, and type name comparison using reflection.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok {
		if errors.Is(err, targetError) {
			return true
		}
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}

		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}

		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

func init() {
	// Register sentinel errors so that errors.Is can detect them by constant name.
	RegisterErrorType(VersionConflictException, ErrVersionConflict)
	RegisterErrorType(ValidationException, ErrValidation)
	RegisterErrorType(TimeoutException, ErrTimeout)
	RegisterErrorType(TokenExpiredException, ErrTokenExpired)
	RegisterErrorType(TokenConsumedException, ErrTokenConsumed)
	RegisterErrorType(TokenUnknownException, ErrTokenUnknown)

	// Common network-related error names referenced in retry configuration.
	RegisterErrorType("io.EOF", errors.New("io.EOF"))
	RegisterErrorType("net.OpError", errors.New("net.OpError"))
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)

	// Common database-related error names.
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}

// IsVersionConflict determines if an error indicates an optimistic-concurrency conflict.
func IsVersionConflict(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrVersionConflict)
}

// ExtractErrorMessage extracts the error message string from an error.
// For RecoveryError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *RecoveryError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

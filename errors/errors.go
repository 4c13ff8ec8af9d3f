// Package errors provides standardized error handling patterns for FlowKit.
// It includes error classification, standard error variables, and helper functions
// for consistent error wrapping and classification across the runtime.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for the conditions the runtime produces.
// Each variable maps to a distinct error kind preserved across the
// node-type ABI boundary.
var (
	// ErrInvalidArgument covers nil handles, out-of-range indices and
	// malformed spec arrays.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidAPIVersion is returned when a boundary struct carries an
	// API-version tag different from the runtime's.
	ErrInvalidAPIVersion = errors.New("invalid api version")

	// ErrNotFound covers unknown node names, unknown port names and
	// unknown resolver ids.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists covers duplicate node names in the builder and
	// attempts to modify an already-built type.
	ErrAlreadyExists = errors.New("already exists")

	// ErrOutOfRange covers port-array indices beyond the array size and
	// option numerics outside their declared bounds.
	ErrOutOfRange = errors.New("out of range")

	// ErrOutOfMemory is returned on allocation failure at any layer.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidOption covers unknown option names, option type
	// mismatches and missing required options.
	ErrInvalidOption = errors.New("invalid option")

	// ErrNotConnected is propagated from node-type implementations when a
	// required peer or resource is absent. Opaque to the runtime.
	ErrNotConnected = errors.New("not connected")

	// ErrIO is propagated from node-type implementations on I/O failure.
	// Opaque to the runtime.
	ErrIO = errors.New("io error")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and may be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, ErrIO) || errors.Is(err, ErrNotConnected)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrOutOfMemory)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidAPIVersion) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidOption)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

// Kind predicates for the runtime's error table. These look through
// wrapping chains via errors.Is so callers never match on strings.

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsInvalidAPIVersion reports whether err is an invalid-api-version error.
func IsInvalidAPIVersion(err error) bool { return errors.Is(err, ErrInvalidAPIVersion) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err is an already-exists error.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsOutOfRange reports whether err is an out-of-range error.
func IsOutOfRange(err error) bool { return errors.Is(err, ErrOutOfRange) }

// IsInvalidOption reports whether err is an invalid-option error.
func IsInvalidOption(err error) bool { return errors.Is(err, ErrInvalidOption) }

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// Wrapf creates a standardized error with formatted action context
func Wrapf(err error, component, method, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, component, method, fmt.Sprintf(format, args...))
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// New creates a plain error. Re-exported so runtime packages depend on a
// single errors import.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

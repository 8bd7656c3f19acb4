// Package errors provides structured error handling for gridio.
//
// Every failure that crosses a package boundary carries an ErrorType so callers
// can branch on the kind of failure (an unwritable destination, an unreadable
// source, a missing table) without parsing messages. Codecs and adapters never
// swallow errors: they wrap with the most specific type and return.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents invalid options or configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeDestinationUnwritable means an export target cannot be created or written
	ErrorTypeDestinationUnwritable ErrorType = "destination_unwritable"
	// ErrorTypeSourceUnreadable means an import source is missing, corrupt or of the wrong format
	ErrorTypeSourceUnreadable ErrorType = "source_unreadable"
	// ErrorTypeSchemaMismatch means a required table or column is absent or malformed on import
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeQuoteMismatch means delimited text could not be parsed, most likely
	// because the quote character differs from the one used at export
	ErrorTypeQuoteMismatch ErrorType = "quote_mismatch"
	// ErrorTypeRemote represents failures retrieving a remote source
	ErrorTypeRemote ErrorType = "remote"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
// If err already carries a more specific gridio type it is kept as the cause
// and the outer error takes errType; use Propagate to keep the inner type.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, fmt.Sprintf(format, args...))
	return wrapped
}

// Propagate adds context to err without changing its kind. Errors that are not
// yet typed get fallback as their type.
func Propagate(err error, fallback ErrorType, message string) error {
	if err == nil {
		return nil
	}
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    existingErr.Type,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}
	return Wrap(err, fallback, message)
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost gridio error in the chain, or "".
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

// Package errors defines the application error types used across the
// pipeline. The core philosophy: dirty data is never an error. Malformed
// dates and unidentifiable rows are normalized into absent values and kept;
// the only failures surfaced here are integration mistakes (stages recorded
// out of order, input missing a whole column) and infrastructure faults
// (config, storage).
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of an application error.
type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeInputShape ErrorType = "INPUT_SHAPE"
	ErrTypeOrder      ErrorType = "ORDER"
)

// AppError represents an application-specific error with a type, an optional
// cause and free-form context for structured logging.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError creates a configuration-related error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation-related error
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewOrderViolation reports a metrics stage recorded out of the dataset's
// declared pipeline sequence. This is a programming or integration mistake,
// fatal to the run, never retried.
func NewOrderViolation(dataset, gotStage, wantStage string) *AppError {
	e := NewAppError(ErrTypeOrder,
		fmt.Sprintf("stage %q recorded out of order for dataset %q (expected %q)", gotStage, dataset, wantStage),
		nil)
	e.Context["dataset"] = dataset
	e.Context["got_stage"] = gotStage
	e.Context["want_stage"] = wantStage
	return e
}

// NewMalformedInputShape reports an input dataset missing an expected column
// entirely. Distinct from a column full of empty values: this indicates an
// upstream contract break rather than dirty data, and is fatal.
func NewMalformedInputShape(dataset string, missing []string) *AppError {
	e := NewAppError(ErrTypeInputShape,
		fmt.Sprintf("dataset %q is missing expected columns %v", dataset, missing),
		nil)
	e.Context["dataset"] = dataset
	e.Context["missing_columns"] = missing
	return e
}

// IsType reports whether err is (or wraps) an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsOrderViolation reports whether err is an out-of-order stage recording.
func IsOrderViolation(err error) bool {
	return IsType(err, ErrTypeOrder)
}

// IsMalformedInputShape reports whether err is a missing-column input error.
func IsMalformedInputShape(err error) bool {
	return IsType(err, ErrTypeInputShape)
}

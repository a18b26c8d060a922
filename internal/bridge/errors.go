package bridge

import (
	"errors"
	"fmt"
)

// CallError is the single error type returned by Call.
//
// Every failure of a bridged call is reported as a CallError:
//   - Lookup failures: the operation name is unknown
//   - Binding failures: arity, unknown or unbindable options, bad values
//   - Build failures: the native operation refused to build
//   - Harvest failures: a declared output could not be read
//
// Native carries the collaborator's error-buffer text when there was any.
type CallError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Operation is the operation being called.
	Operation string

	// Parameter names the argument being bound or read, if any.
	Parameter string

	// Native is the native library's error text, if any.
	Native string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes call errors.
type ErrorCode string

const (
	// ErrCodeOperationNotFound indicates no operation has the given name.
	ErrCodeOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"

	// ErrCodeTypeMismatch indicates a value cannot be coerced to the declared type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeMissingReference indicates a constant needed an image to match
	// and the call supplied none.
	ErrCodeMissingReference ErrorCode = "MISSING_REFERENCE"

	// ErrCodeUnknownEnumNick indicates text that names no member of an enum
	// or flags type.
	ErrCodeUnknownEnumNick ErrorCode = "UNKNOWN_ENUM_NICK"

	// ErrCodeArityMismatch indicates the wrong number of positional arguments.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeUnknownParameter indicates an option key the operation does not declare.
	ErrCodeUnknownParameter ErrorCode = "UNKNOWN_PARAMETER"

	// ErrCodeNotBindable indicates an option key naming a parameter that
	// cannot be set as an option.
	ErrCodeNotBindable ErrorCode = "NOT_BINDABLE"

	// ErrCodeBuildFailed indicates the native build step failed.
	ErrCodeBuildFailed ErrorCode = "BUILD_FAILED"

	// ErrCodeOutputReadFailed indicates a declared output could not be read.
	ErrCodeOutputReadFailed ErrorCode = "OUTPUT_READ_FAILED"

	// ErrCodeUnsupportedType indicates a parameter type with no coercion rule.
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
)

// Error implements the error interface.
func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Operation != "" && e.Parameter != "":
		msg = fmt.Sprintf("%s (operation=%s, parameter=%s)", msg, e.Operation, e.Parameter)
	case e.Operation != "":
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Native != "" {
		msg += ": " + e.Native
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CallError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is, or wraps, a CallError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of the CallError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newError(code ErrorCode, operation, format string, args ...any) *CallError {
	return &CallError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Operation: operation,
	}
}

// withParam sets the parameter and returns the error for chaining.
func (e *CallError) withParam(name string) *CallError {
	e.Parameter = name
	return e
}

// asCallError tags err with operation and parameter context. A CallError
// keeps its code; anything else becomes fallback.
func asCallError(err error, fallback ErrorCode, operation, param string) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		if ce.Operation == "" {
			ce.Operation = operation
		}
		if ce.Parameter == "" {
			ce.Parameter = param
		}
		return ce
	}
	return &CallError{
		Code:      fallback,
		Message:   err.Error(),
		Operation: operation,
		Parameter: param,
		Err:       err,
	}
}

// NewArityError reports a positional argument count mismatch.
func NewArityError(operation string, required, supplied int) *CallError {
	return &CallError{
		Code:      ErrCodeArityMismatch,
		Message:   fmt.Sprintf("%d arguments required, but %d supplied", required, supplied),
		Operation: operation,
		Details: map[string]string{
			"required": fmt.Sprintf("%d", required),
			"supplied": fmt.Sprintf("%d", supplied),
		},
	}
}

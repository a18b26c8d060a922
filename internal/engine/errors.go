package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running a recipe.
//
// RuntimeError includes structured fields for diagnostics. Err carries the
// bridge error when a call failed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Recipe is the recipe being run, as a nesting path ("main/thumb").
	Recipe string

	// Step identifies the failing step.
	Step string

	// Err is the underlying error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStepFailed indicates the bridge rejected a step's call.
	ErrCodeStepFailed RuntimeErrorCode = "STEP_FAILED"

	// ErrCodeCycleDetected indicates a recipe was entered while already running.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeQuotaExceeded indicates the run exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownRecipe indicates a referenced recipe doesn't exist.
	ErrCodeUnknownRecipe RuntimeErrorCode = "UNKNOWN_RECIPE"

	// ErrCodeEmptyRecipe indicates a recipe with no steps.
	ErrCodeEmptyRecipe RuntimeErrorCode = "EMPTY_RECIPE"

	// ErrCodeUnresolvedReference indicates a "$step" reference has no value.
	ErrCodeUnresolvedReference RuntimeErrorCode = "UNRESOLVED_REFERENCE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Recipe != "" && e.Step != "" {
		msg = fmt.Sprintf("%s (recipe=%s, step=%s)", msg, e.Recipe, e.Step)
	} else if e.Recipe != "" {
		msg = fmt.Sprintf("%s (recipe=%s)", msg, e.Recipe)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsCycleError returns true if the error is a recursion error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycleDetected
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewCycleError creates a RuntimeError for a recipe that nests itself.
func NewCycleError(path, recipe string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: fmt.Sprintf("recipe %s is already running", recipe),
		Recipe:  path,
	}
}

func stepError(code RuntimeErrorCode, path, step string, err error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Recipe:  path,
		Step:    step,
		Err:     err,
	}
}

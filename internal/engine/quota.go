package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the calls made by one run and enforces a maximum.
//
// Nested recipes share their caller's enforcer, so the limit bounds the
// whole expansion. Recursion is caught separately; the quota catches deep
// but acyclic nesting.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(recipe string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Recipe: recipe,
			Steps:  q.current,
			Limit:  q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a run exceeds the max steps quota.
type StepsExceededError struct {
	Recipe string // The recipe path that took the step over the limit
	Steps  int    // Number of steps taken
	Limit  int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("recipe %s exceeded max steps quota: %d steps > %d limit",
		e.Recipe, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

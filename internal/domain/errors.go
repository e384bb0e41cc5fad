package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrWriteFailed      = errors.New("write failed")
	ErrPartialFailure   = errors.New("partial failure")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// PartialFailureError is returned by stores that applied only part of a
// resolution. Resolution.Applied lists what was written.
type PartialFailureError struct {
	Resolution *Resolution
	Err        error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure resolving join request %s (applied %v): %v",
		e.Resolution.Request.ID, e.Resolution.Applied, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}

// ReconciliationError marks a resolution that could not be completed and
// needs an operator or the counter reconciliation job to repair.
type ReconciliationError struct {
	RequestID string
	Missing   []ResolutionStep
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("join request %s needs manual reconciliation (missing %v): %v", e.RequestID, e.Missing, e.Err)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// IsAlreadyHandled reports whether err means the request was resolved elsewhere.
func IsAlreadyHandled(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState)
}

// Package apperr holds the error taxonomy shared across dealwatch.
//
// Packages wrap these sentinels with context (fmt.Errorf("...: %w", ...)) and
// callers classify with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks malformed input rejected before scoring.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown audit entry, deal or alert id.
	ErrNotFound = errors.New("not found")
	// ErrNotRollbackable marks a rollback of an ineligible audit action.
	ErrNotRollbackable = errors.New("action is not rollbackable")
	// ErrDelivery marks a failed alert channel delivery. Non-fatal.
	ErrDelivery = errors.New("delivery failed")
	// ErrDownstreamUnavailable marks an unreachable external record store.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched through errors.Is by transport layers.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("record not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Operation labels used in validation and internal error messages.
const (
	OpCreateTraffic    = "creating traffic record"
	OpEditTrafficLimit = "editing traffic limit"
	OpCreateHousing    = "creating housing record"
)

// ValidationError reports a missing, empty or non-positive payload field.
type ValidationError struct {
	Operation string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		if e.Reason == "" {
			return fmt.Sprintf("invalid payload for %s", e.Operation)
		}
		return fmt.Sprintf("invalid payload for %s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("invalid payload for %s: %s %s", e.Operation, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned when a referenced identifier does not resolve.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s record with ID=%s not found", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match any missing record.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CapacityExceededError carries the remaining limit computed before the
// rejected allocation so callers can adjust and retry.
type CapacityExceededError struct {
	TrafficID      string
	Requested      int
	RemainingLimit int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("the number of residents (%d) exceeds the available limit for traffic %s. Remaining Limit: %d",
		e.Requested, e.TrafficID, e.RemainingLimit)
}

// Is lets errors.Is(err, ErrCapacityExceeded) match any capacity rejection.
func (e CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// InternalError wraps an unanticipated failure raised while serving an operation.
type InternalError struct {
	Operation string
	Err       error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// IsDomainError reports whether err belongs to the caller-facing taxonomy and
// should be surfaced as-is rather than wrapped in an InternalError.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrCapacityExceeded)
}

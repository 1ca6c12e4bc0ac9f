package booking

import (
	"errors"
	"fmt"

	"github.com/agendly/agendly/services/booking-service/internal/conflict"
)

var (
	ErrInvalidRequest       = errors.New("invalid booking request")
	ErrQuotaExceeded        = errors.New("monthly appointment limit reached")
	ErrInsuranceLimit       = errors.New("insurance plan limit reached")
	ErrOutsideBusinessHours = errors.New("requested time is outside business hours")
	ErrNotFound             = errors.New("appointment not found")
	ErrTemplateNotFound     = errors.New("schedule template not found")
	ErrNotCancelable        = errors.New("appointment can no longer be canceled")
	ErrNotReschedulable     = errors.New("only scheduled appointments can be rescheduled")
	ErrIdempotencyMismatch  = errors.New("idempotency key reused with a different request")
)

// ConflictError means the slot is taken. Conflict is nil when the loser only
// learned that from a slot hold or the storage constraint.
type ConflictError struct {
	Conflict *conflict.Details
	RaceLost bool
}

func (e *ConflictError) Error() string {
	if e.Conflict == nil {
		return "requested time was just booked by someone else"
	}
	return conflict.Result{HasConflict: true, Conflict: e.Conflict}.Message()
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// outcome is the metrics label for err.
func outcome(err error) string {
	var ce *ConflictError
	switch {
	case err == nil:
		return "created"
	case errors.As(err, &ce):
		if ce.RaceLost {
			return "race_lost"
		}
		return "conflict"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInsuranceLimit):
		return "insurance_limit"
	case errors.Is(err, ErrOutsideBusinessHours):
		return "outside_hours"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, ErrNotCancelable), errors.Is(err, ErrNotReschedulable):
		return "not_scheduled"
	default:
		return "error"
	}
}

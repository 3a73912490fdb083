// Package apperrors defines the typed failures the booking engine returns
// to its callers. Every error carries enough detail for a polling client
// to resynchronize its view (current status, remaining seats) instead of
// guessing from an opaque message.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown ride or booking id.
type NotFoundError struct {
	Kind string // "ride" or "booking"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// UnauthorizedError reports that the acting user does not own the entity
// the operation mutates.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// InvalidStateError reports an operation that is not legal in the
// entity's current status. Status lets clients detect stale UI state.
type InvalidStateError struct {
	Kind   string // "ride" or "booking"
	ID     string
	Status string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s in status %q", e.Kind, e.ID, e.Op, e.Status)
}

// InsufficientSeatsError reports a failed capacity check on accept.
// The booking stays pending; the driver must reject it explicitly.
type InsufficientSeatsError struct {
	RideID    string
	Available int
	Requested int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("ride %s: %d seats requested, %d available", e.RideID, e.Requested, e.Available)
}

// NoPassengersError reports a start attempt with zero confirmed bookings.
type NoPassengersError struct {
	RideID string
}

func (e *NoPassengersError) Error() string {
	return fmt.Sprintf("ride %s has no confirmed passengers", e.RideID)
}

// ConcurrencyConflictError surfaces after the internal retry budget for a
// contended ride is exhausted. Callers should treat it as retryable.
type ConcurrencyConflictError struct {
	RideID string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("ride %s: too much contention, retry", e.RideID)
}

// HTTPStatus maps an engine error to the status code the API layer
// responds with. Unrecognized errors are internal failures.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ua *UnauthorizedError
		is *InvalidStateError
		ns *InsufficientSeatsError
		np *NoPassengersError
		cc *ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ua):
		return http.StatusForbidden
	case errors.As(err, &is), errors.As(err, &ns), errors.As(err, &np):
		return http.StatusConflict
	case errors.As(err, &cc):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

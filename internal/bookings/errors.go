package bookings

import "errors"

var (
	// ErrSeatUnavailable means another booking holds at least one requested seat.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrHoldExpired means a payment confirmation arrived after the hold
	// deadline. Expiration wins that race even if the row has not been swept yet.
	ErrHoldExpired = errors.New("hold expired")
	// ErrAlreadyProcessed is not a failure: the transition was applied by an
	// earlier delivery and the repeated call changed nothing.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrValidation means the request was rejected before any lock was attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means no booking exists for the given identifier.
	ErrNotFound = errors.New("booking not found")
	// ErrUnauthorized means the actor does not own the booking.
	ErrUnauthorized = errors.New("booking does not belong to user")
	// ErrRepositoryUnavailable means durable storage failed. Callers must fail
	// closed: the booking may or may not exist, nothing can be assumed free.
	ErrRepositoryUnavailable = errors.New("booking repository unavailable")
)

package entities

import "errors"

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrValidation marks malformed or out-of-range input, rejected before
	// anything is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks a status change that violates the delivery
	// lifecycle order.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoDriverAvailable is returned when assignment is attempted with an
	// empty active-driver set. The delivery stays pending.
	ErrNoDriverAvailable = errors.New("no active driver available")

	// ErrConflict is returned when a concurrent mutation lost the race. It
	// is surfaced to the caller, never retried internally.
	ErrConflict = errors.New("record was modified concurrently")
)

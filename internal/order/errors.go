package order

import "errors"

var (
	// ErrNotFound means no order exists with the given id.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition means the requested status change is not a
	// permitted lifecycle edge.
	ErrInvalidTransition = errors.New("invalid status transition")
)

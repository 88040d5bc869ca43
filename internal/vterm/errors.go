package vterm

import "errors"

// Sentinel errors for the vterm package.
var (
	// ErrNoMemory is returned when a grid does not fit its storage tier budget.
	ErrNoMemory = errors.New("out of memory")

	// ErrInvalidSize is returned when grid dimensions are invalid.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrInvalidCount is returned when the session count is invalid.
	ErrInvalidCount = errors.New("invalid session count")

	// ErrInvalidQueue is returned when the input queue or binding capacity is invalid.
	ErrInvalidQueue = errors.New("invalid queue capacity")
)

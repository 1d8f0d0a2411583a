package grouping

import "errors"

var (
	// ErrInvalidGroupSize is returned when the requested group size is below 1.
	ErrInvalidGroupSize = errors.New("group size must be at least 1")

	// ErrUnknownStrategy is returned for a leftover strategy that is not supported.
	ErrUnknownStrategy = errors.New("unknown grouping strategy")
)

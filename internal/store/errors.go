package store

import "errors"

// Caller errors surfaced synchronously to the command surface. These are
// never logged as system faults.
var (
	// ErrInvalidTarget means a subscription referenced a station or route id
	// that is not in the schedule snapshot.
	ErrInvalidTarget = errors.New("subscription target does not exist")

	// ErrNotFound means the requested row does not exist or does not belong
	// to the caller.
	ErrNotFound = errors.New("not found")
)

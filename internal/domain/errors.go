package domain

import "errors"

var (
	// ErrLimitExceeded is the expected outcome of creating a timer while
	// the user already holds the maximum number of active ones. Callers
	// branch on it with errors.Is; it does not indicate a storage fault.
	ErrLimitExceeded = errors.New("active timer limit exceeded")

	// ErrCorrupted is reported by the store when its native integrity
	// check fails. Not fatal: the maintenance loop reacts by restoring
	// from the latest snapshot.
	ErrCorrupted = errors.New("store corrupted")
)

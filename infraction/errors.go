package infraction

import "errors"

// Caller-visible error classes. All are non-retryable: the caller must
// correct its input or pick a different target. Transaction-level sqlite
// contention is retried once inside the engine before surfacing.
var (
	// ErrNotFound covers unknown kids, definitions and events.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState covers events that are already reviewed (terminal).
	ErrInvalidState = errors.New("already handled")

	// ErrInvalidInput covers malformed categories, negative minutes and
	// unsupported mode/action strings.
	ErrInvalidInput = errors.New("invalid input")
)

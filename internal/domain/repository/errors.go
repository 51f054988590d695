package repository

import "errors"

// Error taxonomy for the quote engine. All of these are recovered locally by
// their callers; none is fatal.
var (
	// ErrUnknownTicker means an event or request referenced a ticker with no
	// tracking record.
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrCapacityExceeded means all live subscription slots are in use.
	ErrCapacityExceeded = errors.New("subscription capacity exceeded")

	// ErrNotSubscribed means an unsubscribe was requested for a ticker that
	// has no live subscription.
	ErrNotSubscribed = errors.New("ticker not subscribed")

	// ErrInvalidQuote means a poll response carried a non-success status.
	ErrInvalidQuote = errors.New("invalid quote response")

	// ErrNoRecipients means a notification had nobody to go to.
	ErrNoRecipients = errors.New("no registered recipients")
)

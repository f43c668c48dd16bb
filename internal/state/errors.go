package state

import "errors"

// Sentinel reasons for rejecting a command. Apply wraps them with context;
// match with errors.Is.
var (
	// ErrInvalidRecord indicates a record is missing its natural key.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrUnknownFeed indicates a reference to a feed id that is not stored.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrUnknownCategory indicates a reference to a category id that is not stored.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownCommand indicates a log entry whose kind has no decoder.
	ErrUnknownCommand = errors.New("unknown command kind")
)

package storage

import "errors"

// Storage error kinds. Backend-specific failures are wrapped with
// fmt.Errorf("...: %w", ...) so callers can match on these with
// errors.Is regardless of which backend produced them.
var (
	// ErrUnimplemented is returned when the active backend does not
	// support the requested operation.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrEventNotFound is returned when a referenced event or alert
	// group does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrQueryFailure wraps an underlying storage engine error.
	ErrQueryFailure = errors.New("query failure")

	// ErrSerialization is returned for malformed JSON in a stored or
	// incoming document.
	ErrSerialization = errors.New("serialization failure")

	// ErrTimeParse is returned when a stored or filter timestamp cannot
	// be parsed. Fatal to the row being processed.
	ErrTimeParse = errors.New("time parse failure")

	// ErrArgumentEncoding is returned by the query builder when the
	// placeholder count and argument count disagree. This is a
	// programming error and must fail the whole request; a partially
	// bound statement would attach values to the wrong predicates.
	ErrArgumentEncoding = errors.New("placeholder/argument mismatch")
)

package search

import "errors"

var (
	// ErrReaderRequired is returned when an Engine is built without a storage reader.
	ErrReaderRequired = errors.New("storage reader required")

	// ErrInvalidQuery matches every *ValidationError via errors.Is.
	ErrInvalidQuery = errors.New("invalid query")
)

package vector

import "errors"

var (
	// ErrEmptyText is returned when an empty string is submitted for embedding.
	ErrEmptyText = errors.New("vector: text cannot be empty")

	// ErrDimensionMismatch is returned when a vector's dimensionality does not
	// match the collection it is used against. This is a configuration error
	// and is never silently corrected by truncation or padding.
	ErrDimensionMismatch = errors.New("vector: embedding dimension mismatch")

	// ErrProviderUnavailable is returned when the embedding provider cannot be
	// reached after the capped retry budget is exhausted.
	ErrProviderUnavailable = errors.New("vector: embedding provider unavailable")

	// ErrProviderTimeout is returned when the embedding provider call exceeds
	// its deadline.
	ErrProviderTimeout = errors.New("vector: embedding provider timeout")

	// ErrCollectionNotFound is returned for operations on an unknown collection.
	ErrCollectionNotFound = errors.New("vector: collection not found")
)

package kb

import "errors"

var (
	// ErrInvalidTopK is returned when Retrieve is called with topK <= 0.
	ErrInvalidTopK = errors.New("kb: topK must be positive")

	// ErrEmptyQuery is returned for an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("kb: query cannot be empty")

	// ErrRetrievalFailed wraps provider failures after the retry budget is
	// exhausted.
	ErrRetrievalFailed = errors.New("kb: retrieval failed")
)

package ingest

import "errors"

var (
	// ErrEmptyText is returned when a document has no ingestible content.
	ErrEmptyText = errors.New("ingest: text cannot be empty")

	// ErrChunkTooLong is returned when a chunk still exceeds the maximum
	// supported length after paragraph, sentence and word splitting.
	ErrChunkTooLong = errors.New("ingest: chunk exceeds maximum supported length")

	// ErrIngestionFailed wraps provider and storage failures during ingestion.
	ErrIngestionFailed = errors.New("ingest: ingestion failed")
)

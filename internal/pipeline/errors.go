package pipeline

import "errors"

// Caller-visible pipeline errors
var (
	// ErrEmptyBatch is returned when a batch contains no documents.
	ErrEmptyBatch = errors.New("batch contains no documents")

	// ErrBatchTooLarge is returned before any work starts when a batch
	// exceeds the document limit.
	ErrBatchTooLarge = errors.New("too many documents in batch")

	// ErrValidationFailed is returned when a file fails pre-processing
	// validation. The wrapped message carries the human-readable reason.
	ErrValidationFailed = errors.New("file validation failed")

	// ErrUnsupportedFormat is returned for file types outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

package engine

import (
	"errors"
	"fmt"
)

// Common recognition engine errors
var (
	// ErrEngineUnavailable is returned when an engine could not be initialized
	// or its backing service cannot be reached. The executor degrades to the
	// remaining engines instead of failing the document.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrRecognitionFailed is returned when an engine throws during invocation.
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrInvalidPage is returned when the page image cannot be decoded by the engine.
	ErrInvalidPage = errors.New("invalid page image")
)

// EngineError wraps errors with additional context about the recognition failure.
type EngineError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionEngine").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("engine: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("engine: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapEngineError wraps an error as an EngineError if it isn't already one.
func WrapEngineError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var engErr *EngineError
	if errors.As(err, &engErr) {
		return err // Already wrapped
	}

	return &EngineError{Op: op, Err: err, Details: details}
}

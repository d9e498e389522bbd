package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("todo not found")
	ErrAlreadyCompleted = errors.New("todo already completed")
	ErrIDGeneration     = errors.New("failed to generate id")

	errEmptyID         = errors.New("generator returned an empty id")
	errWatchContention = errors.New("too many concurrent writers")
)

// BackendError wraps any fault raised by the storage layer itself:
// connectivity, constraint violations, decode failures.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

func IsBackendFailure(err error) bool {
	var backendErr *BackendError
	return errors.As(err, &backendErr)
}

func idGenerationError(err error) error {
	return fmt.Errorf("%w: %w", ErrIDGeneration, err)
}

type errDuplicateID string

func (e errDuplicateID) Error() string {
	return fmt.Sprintf("generator reused id %q", string(e))
}

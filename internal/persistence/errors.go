package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrStaleWrite is returned when a move was computed against an outdated session version.
	ErrStaleWrite = errors.New("persistence: stale write")
	// ErrConstraintViolation is returned when a write violates a storage constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)

// StaleWriteError describes a rejected optimistic write.
type StaleWriteError struct {
	SessionID string
	Expected  int
	Actual    int
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("persistence: session %s is at version %d, move expected %d", e.SessionID, e.Actual, e.Expected)
}

// Unwrap allows errors.Is(err, ErrStaleWrite).
func (e *StaleWriteError) Unwrap() error {
	return ErrStaleWrite
}

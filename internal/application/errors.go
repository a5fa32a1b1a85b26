package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/studio-scheduler/internal/availability"
	"github.com/example/studio-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write would create a hard conflict.
	ErrConflict = errors.New("application: scheduling conflict")
	// ErrConcurrentUpdate is returned when a write was based on outdated data.
	ErrConcurrentUpdate = errors.New("application: concurrent update")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports the hard conflicts that blocked a write, with the
// alternatives found for it.
type ConflictError struct {
	SessionID    string
	Conflicts    []scheduler.Conflict
	Alternatives []scheduler.Alternative
}

func (e *ConflictError) Error() string {
	reasons := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		if c.Hard() {
			reasons = append(reasons, string(c.Reason))
		}
	}
	return fmt.Sprintf("session %s cannot be placed: %s", e.SessionID, strings.Join(reasons, ", "))
}

// Unwrap allows errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error { return ErrConflict }

// ConcurrencyError reports a write rejected because the session changed since it was read.
type ConcurrencyError struct {
	SessionID string
	Expected  int
	Actual    int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("session %s was modified concurrently (expected version %d, found %d)", e.SessionID, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrConcurrentUpdate).
func (e *ConcurrencyError) Unwrap() error { return ErrConcurrentUpdate }

// entryValidationError converts availability entry errors into a ValidationError.
func entryValidationError(err error) (*ValidationError, bool) {
	if !errors.Is(err, availability.ErrInvalidEntry) {
		return nil, false
	}
	vErr := &ValidationError{}
	var list availability.EntryErrors
	if errors.As(err, &list) {
		for _, fe := range list {
			vErr.add(entryField(fe), fe.Message)
		}
		return vErr, true
	}
	var single *availability.EntryError
	if errors.As(err, &single) {
		vErr.add(entryField(single), single.Message)
		return vErr, true
	}
	vErr.add("entry", err.Error())
	return vErr, true
}

func entryField(fe *availability.EntryError) string {
	if fe.Index < 0 {
		return fe.Field
	}
	return fmt.Sprintf("entries[%d].%s", fe.Index, fe.Field)
}

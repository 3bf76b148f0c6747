package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing entity reference.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrConflict reports a violated uniqueness or referential constraint.
type ErrConflict struct {
	Entity EntityType
	Detail string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Detail)
}

// IsConflict reports whether err wraps an ErrConflict.
func IsConflict(err error) bool {
	var c ErrConflict
	return errors.As(err, &c)
}

// ErrTransient wraps infrastructure failures that may succeed on retry,
// such as a lost database connection or an unreachable blob backend.
type ErrTransient struct {
	Op  string
	Err error
}

func (e ErrTransient) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e ErrTransient) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps an ErrTransient.
func IsTransient(err error) bool {
	var t ErrTransient
	return errors.As(err, &t)
}

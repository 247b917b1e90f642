package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrItemNotFound     = errors.New("item not found")
)

// ValidationError reports user-correctable input. The operation that
// returned it left the catalog untouched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func newValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IndexError is a stale or out-of-range positional reference.
type IndexError struct {
	Category string
	Index    int
	Len      int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for category %q (len %d)", e.Index, e.Category, e.Len)
}

func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}

// PersistenceError means the blob backend failed. The in-memory catalog is
// still authoritative; only the persisted copy is stale.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

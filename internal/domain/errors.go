package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldCount is wrapped by MalformedRecordError when a record has the
	// wrong number of fields.
	ErrFieldCount = errors.New("wrong number of fields")

	// ErrCardNotFound is returned when a ref or index names no card.
	ErrCardNotFound = errors.New("card not found")
)

// MalformedRecordError describes one stored or imported record that could not
// be decoded. It is collected and reported rather than aborting a load.
type MalformedRecordError struct {
	Line   int    // first physical line of the record, 1-based
	Fields int    // number of fields found
	Raw    string // the record as read, fields re-joined with '|'
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d (%d fields): %v", e.Line, e.Fields, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// EmptyFieldError is returned when a card would be created with an empty word
// or definition.
type EmptyFieldError struct {
	Field string
}

func (e *EmptyFieldError) Error() string {
	return fmt.Sprintf("%s cannot be empty", e.Field)
}

// PersistenceError wraps an I/O failure on the backing deck file.
type PersistenceError struct {
	Op   string // "load", "save", "backup"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s deck %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

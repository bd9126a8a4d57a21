package domain

import "fmt"

// ConnectionError is returned when a storage URI cannot be parsed or the
// database client cannot be constructed.
type ConnectionError struct {
	Scheme string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("storage connection: %v", e.Err)
	}
	return fmt.Sprintf("storage connection (%s): %v", e.Scheme, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StorageError represents a failed query or write against the store.
type StorageError struct {
	Op         string
	Database   string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Database, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MissingFieldError is returned when a required record field is absent from the input.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field `%s`", e.Field)
}

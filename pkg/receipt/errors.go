package receipt

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a receipt id does not exist.
var ErrNotFound = errors.New("receipt not found")

// StorageError wraps a failure from a storage backend.
type StorageError struct {
	Backend   string // backend type ("sqlite", "memory")
	Operation string // operation that failed ("store", "query", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("receipt storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

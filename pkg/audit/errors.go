package audit

import (
	"errors"
	"fmt"
)

// ErrStorageClosed is returned by operations on a closed storage backend.
var ErrStorageClosed = errors.New("audit storage is closed")

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Backend type ("memory", "sqlite")
	Operation string // Operation that failed ("store", "query", "prune", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
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

package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a row or file the caller relies on is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySubscribed is returned when adding a channel that is already followed.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// StorageError wraps storage errors with operation and entity context.
//
//	var storErr *repository.StorageError
//	if errors.As(err, &storErr) { ... }
type StorageError struct {
	// Op is the operation that failed ("load", "upsert", "toggle", "schema").
	Op string
	// Entity is the entity type ("video", "watch_later", "watch_history").
	Entity string
	// ID is the entity ID if applicable.
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

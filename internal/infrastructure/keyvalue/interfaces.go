package keyvalue

import (
	"context"
	"fmt"
)

// Store is the persistent key-value contract the safety subsystem writes
// through. It is non-transactional: callers tolerate partial multi-key
// writes and keep their own integrity checks.
type Store interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)
	// Set stores a value under key
	Set(ctx context.Context, key string, value string) error
	// Remove deletes a key
	Remove(ctx context.Context, key string) error
	// Keys lists all keys with the given prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error
	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}) error
	// Close releases the underlying connection
	Close() error
}

// ErrKeyNotFound is returned when a key does not exist in the store
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

// IsNotFound reports whether err is a missing-key error
func IsNotFound(err error) bool {
	_, ok := err.(ErrKeyNotFound)
	return ok
}

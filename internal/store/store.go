// Package store provides durable key-value persistence with an
// exclusive-access primitive for atomic read-modify-write sequences.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no value has ever been set for a key
var ErrKeyNotFound = errors.New("key not found")

// Accessor exposes reads and writes inside an exclusive-access section.
// Mutations composed through an Accessor are the only safe way to perform a
// read-modify-write against a key shared with other writers.
type Accessor interface {
	// Get returns the current value for key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set durably overwrites the value for key
	Set(ctx context.Context, key string, value []byte) error
}

// Store is a durable key-value store
type Store interface {
	Accessor

	// WithExclusiveAccess runs fn with a guarantee that no other
	// WithExclusiveAccess call on the same key runs concurrently
	WithExclusiveAccess(ctx context.Context, key string, fn func(tx Accessor) error) error
}

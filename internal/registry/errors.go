package registry

import "errors"

var (
	// ErrUninitialized indicates the persisted repository list is absent.
	// Should not occur after a successful Start.
	ErrUninitialized = errors.New("repository list is not initialized")

	// ErrAlreadyExists indicates an add for a URL that is already registered
	ErrAlreadyExists = errors.New("repository already registered")

	// ErrNotFound indicates a remove for a URL that is not registered
	ErrNotFound = errors.New("repository not registered")
)

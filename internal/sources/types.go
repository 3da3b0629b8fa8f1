// Package sources implements repository sources: per-URL handles that pull a
// repository's manifest index into a local cache and read it back without
// touching the network.
package sources

import (
	"context"

	"github.com/caskhub/caskd/internal/manifest"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=types.go Source,Factory

// Source is a handle to one app repository
type Source interface {
	// URL returns the repository URL this source was built from
	URL() string

	// Refresh pulls the repository's index from its remote and atomically
	// replaces the local cache. On failure the prior cache stays intact.
	Refresh(ctx context.Context) error

	// ReadManifests parses the locally cached index into manifest entries.
	// It never performs a network round trip and fails if no valid cache
	// exists.
	ReadManifests(ctx context.Context) ([]manifest.Entry, error)
}

// Factory constructs sources from repository URLs
type Factory interface {
	// CreateSource creates a source for the given repository URL
	CreateSource(url string) (Source, error)
}

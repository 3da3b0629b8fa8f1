// Package git provides a narrow Git client used to fetch manifest indexes
// from repositories published as Git remotes.
package git

import (
	billy "github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Branch is the specific branch to clone (optional)
	Branch string

	// Tag is the specific tag to clone (optional)
	Tag string

	// Auth holds optional HTTP basic auth credentials
	Auth *AuthConfig
}

// AuthConfig holds HTTP basic auth credentials for a Git remote
type AuthConfig struct {
	Username string
	Password string
}

// RepositoryInfo contains the state of a cloned repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *gogit.Repository

	// RemoteURL is the remote repository URL
	RemoteURL string

	// storerFilesystem holds the in-memory filesystem containing the Git
	// object database. It is kept so Cleanup can release the memory; go-git
	// does not free its internal storage on its own.
	storerFilesystem billy.Filesystem

	// objectCache is the LRU cache of decompressed Git objects, cleared
	// explicitly in Cleanup for the same reason.
	objectCache cache.Object
}

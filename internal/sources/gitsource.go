package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caskhub/caskd/internal/git"
	"github.com/caskhub/caskd/internal/manifest"
)

// gitSource fetches a repository's manifest index from a Git remote.
// The index is expected at the repository root; a branch may be pinned with
// a URL fragment, e.g. https://host/apps.git#stable.
type gitSource struct {
	url    string
	client git.Client
	cache  CacheStore
}

// newGitSource creates a Git-backed source for url
func newGitSource(url string, client git.Client, cache CacheStore) Source {
	return &gitSource{
		url:    url,
		client: client,
		cache:  cache,
	}
}

// URL returns the repository URL
func (s *gitSource) URL() string {
	return s.url
}

// Refresh clones the remote, reads the index file from the worktree, and
// replaces the cache if the data parses
func (s *gitSource) Refresh(ctx context.Context) error {
	cloneURL, branch := splitGitRef(s.url)

	repoInfo, err := s.client.Clone(ctx, &git.CloneConfig{
		URL:    cloneURL,
		Branch: branch,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", cloneURL, err)
	}
	defer func() {
		if cleanupErr := s.client.Cleanup(ctx, repoInfo); cleanupErr != nil {
			slog.Warn("Failed to clean up cloned repository",
				"repository", cloneURL,
				"error", cleanupErr)
		}
	}()

	data, err := s.client.GetFileContent(repoInfo, manifest.IndexFileName)
	if err != nil {
		return fmt.Errorf("failed to read %s from %s: %w", manifest.IndexFileName, cloneURL, err)
	}

	idx, err := manifest.ParseIndex(data)
	if err != nil {
		return fmt.Errorf("index from %s is invalid: %w", cloneURL, err)
	}

	if err := s.cache.Save(ctx, s.url, data); err != nil {
		return err
	}

	slog.Debug("Refreshed repository index from git",
		"repository", cloneURL,
		"branch", branch,
		"apps", len(idx.Apps))
	return nil
}

// ReadManifests reads the cached index only
func (s *gitSource) ReadManifests(ctx context.Context) ([]manifest.Entry, error) {
	idx, err := s.cache.Load(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return idx.Apps, nil
}

// splitGitRef splits an optional #branch fragment off a git URL
func splitGitRef(url string) (cloneURL, branch string) {
	if i := strings.LastIndex(url, "#"); i >= 0 {
		return url[:i], url[i+1:]
	}
	return url, ""
}

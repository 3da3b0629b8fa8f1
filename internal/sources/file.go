package sources

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/caskhub/caskd/internal/manifest"
)

// fileSource reads a repository's manifest index from a local file.
// Mostly useful for development and for mirrors maintained out of band.
type fileSource struct {
	url   string
	cache CacheStore
}

// newFileSource creates a file-backed source for a file:// url
func newFileSource(url string, cache CacheStore) Source {
	return &fileSource{
		url:   url,
		cache: cache,
	}
}

// URL returns the repository URL
func (s *fileSource) URL() string {
	return s.url
}

// Refresh copies the local index file into the cache if it parses
func (s *fileSource) Refresh(ctx context.Context) error {
	path, err := localPath(s.url)
	if err != nil {
		return err
	}

	// #nosec G304 -- the path comes from an operator-managed repository list
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read index file %s: %w", path, err)
	}

	if _, err := manifest.ParseIndex(data); err != nil {
		return fmt.Errorf("index file %s is invalid: %w", path, err)
	}

	return s.cache.Save(ctx, s.url, data)
}

// ReadManifests reads the cached index only
func (s *fileSource) ReadManifests(ctx context.Context) ([]manifest.Entry, error) {
	idx, err := s.cache.Load(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return idx.Apps, nil
}

// localPath extracts the filesystem path from a file:// URL.
// A URL with a host component (file://host/path) is rejected rather than
// silently read as the relative path "host/path".
func localPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", rawURL, err)
	}
	if parsed.Host != "" {
		return "", fmt.Errorf("file URL %q must not name a host", rawURL)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("file URL %q has no path", rawURL)
	}
	return parsed.Path, nil
}

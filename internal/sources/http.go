package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caskhub/caskd/internal/httpclient"
	"github.com/caskhub/caskd/internal/manifest"
)

// httpSource fetches a repository's manifest index over HTTP(S)
type httpSource struct {
	url    string
	client httpclient.Client
	cache  CacheStore
}

// newHTTPSource creates an HTTP-backed source for url
func newHTTPSource(url string, client httpclient.Client, cache CacheStore) Source {
	return &httpSource{
		url:    url,
		client: client,
		cache:  cache,
	}
}

// URL returns the repository URL
func (s *httpSource) URL() string {
	return s.url
}

// Refresh fetches the index, validates it, and replaces the cache.
// The cache is only written after the fetched data parses, so a bad fetch
// never clobbers a previously valid cache.
func (s *httpSource) Refresh(ctx context.Context) error {
	data, err := s.client.Get(ctx, s.url)
	if err != nil {
		return fmt.Errorf("failed to fetch index from %s: %w", s.url, err)
	}

	idx, err := manifest.ParseIndex(data)
	if err != nil {
		return fmt.Errorf("index from %s is invalid: %w", s.url, err)
	}

	if err := s.cache.Save(ctx, s.url, data); err != nil {
		return err
	}

	slog.Debug("Refreshed repository index",
		"repository", s.url,
		"apps", len(idx.Apps))
	return nil
}

// ReadManifests reads the cached index only
func (s *httpSource) ReadManifests(ctx context.Context) ([]manifest.Entry, error) {
	idx, err := s.cache.Load(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return idx.Apps, nil
}

package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caskhub/caskd/internal/manifest"
)

const (
	// indexFileName is the cached copy of a repository's manifest index
	indexFileName = "index.json"

	// metaFileName records where and when the cached index was fetched
	metaFileName = "meta.json"
)

// CacheStore persists fetched index data per repository URL
type CacheStore interface {
	// Save atomically replaces the cached index for url
	Save(ctx context.Context, url string, data []byte) error

	// Load reads and parses the cached index for url.
	// Fails if no cache exists.
	Load(ctx context.Context, url string) (*manifest.Index, error)
}

// cacheMeta describes a cached index
type cacheMeta struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetchedAt"`
	Hash      string    `json:"hash"`
}

// fileCacheStore implements CacheStore on the local filesystem, one
// directory per repository keyed by a digest of its URL
type fileCacheStore struct {
	basePath string
}

// NewFileCacheStore creates a file-based cache store rooted at basePath
func NewFileCacheStore(basePath string) CacheStore {
	return &fileCacheStore{
		basePath: basePath,
	}
}

// cacheDir returns the cache directory for a repository URL
func (f *fileCacheStore) cacheDir(url string) string {
	digest := sha256.Sum256([]byte(url))
	return filepath.Join(f.basePath, hex.EncodeToString(digest[:])[:16])
}

// Save writes the index and its metadata, temp file first then atomic rename,
// so a crash mid-write never corrupts an existing cache
func (f *fileCacheStore) Save(_ context.Context, url string, data []byte) error {
	dir := f.cacheDir(url)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory for %s: %w", url, err)
	}

	if err := writeFileAtomic(filepath.Join(dir, indexFileName), data); err != nil {
		return fmt.Errorf("failed to write cached index for %s: %w", url, err)
	}

	digest := sha256.Sum256(data)
	meta := cacheMeta{
		URL:       url,
		FetchedAt: time.Now().UTC(),
		Hash:      hex.EncodeToString(digest[:]),
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata for %s: %w", url, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, metaFileName), metaData); err != nil {
		return fmt.Errorf("failed to write cache metadata for %s: %w", url, err)
	}

	return nil
}

// Load reads the cached index for url and parses it
func (f *fileCacheStore) Load(_ context.Context, url string) (*manifest.Index, error) {
	path := filepath.Join(f.cacheDir(url), indexFileName)

	// #nosec G304 -- path is derived from the cache base path and a URL digest
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no cached index for %s: %w", url, err)
		}
		return nil, fmt.Errorf("failed to read cached index for %s: %w", url, err)
	}

	idx, err := manifest.ParseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("cached index for %s is invalid: %w", url, err)
	}

	return idx, nil
}

// writeFileAtomic writes data to path via a temporary file and rename
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

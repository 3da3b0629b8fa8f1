package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// lockRetryDelay is how often a blocked exclusive-access call re-attempts
	// the file lock
	lockRetryDelay = 50 * time.Millisecond
)

// validKey restricts keys to names that are safe as file names
var validKey = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// fileStore implements Store using one JSON file per key under a base
// directory. Cross-process exclusion uses flock; an in-process mutex map keeps
// exclusion deterministic between goroutines of the same process.
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file-backed store rooted at basePath.
// The directory is created if it does not exist.
func NewFileStore(basePath string) (Store, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &fileStore{
		basePath: basePath,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (f *fileStore) keyPath(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid store key: %q", key)
	}
	return filepath.Join(f.basePath, key+".json"), nil
}

// Get returns the last written value for key, or ErrKeyNotFound
func (f *fileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is constructed from basePath and a validated key
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to read value for key %q: %w", key, err)
	}

	return data, nil
}

// Set durably overwrites the value for key using a temp-file write followed
// by an atomic rename, so readers never observe a partial value.
func (f *fileStore) Set(_ context.Context, key string, value []byte) error {
	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, value, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for key %q: %w", key, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename value file for key %q: %w", key, err)
	}

	return nil
}

// WithExclusiveAccess serializes fn against every other exclusive-access call
// on the same key, across goroutines and across processes.
func (f *fileStore) WithExclusiveAccess(ctx context.Context, key string, fn func(tx Accessor) error) error {
	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	keyLock := f.keyMutex(key)
	keyLock.Lock()
	defer keyLock.Unlock()

	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock for key %q: %w", key, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock for key %q", key)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	return fn(f)
}

func (f *fileStore) keyMutex(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[key] = lock
	}
	return lock
}

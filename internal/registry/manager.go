// Package registry owns the repository list lifecycle: seeding, periodic
// refresh, concurrency-safe mutation, and aggregation of per-repository
// manifests into a single registry view.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/caskhub/caskd/internal/manifest"
	"github.com/caskhub/caskd/internal/sources"
	"github.com/caskhub/caskd/internal/store"
	"github.com/caskhub/caskd/internal/telemetry"
)

// repositoriesKey is the store key holding the persisted repository list
const repositoriesKey = "repositories"

// DefaultRefreshInterval is used when no interval is configured
const DefaultRefreshInterval = 6 * time.Hour

// RepositoryManifests holds one repository's manifest entries in the
// aggregate registry view
type RepositoryManifests struct {
	// Repository is the source repository URL
	Repository string `json:"repository"`

	// Apps are the manifest entries the repository currently offers
	Apps []manifest.Entry `json:"apps"`
}

// Service is the registry surface consumed by the HTTP API
type Service interface {
	// ListRepositories returns the persisted repository URLs in order
	ListRepositories(ctx context.Context) ([]string, error)

	// AddRepository registers a new repository and refreshes it
	AddRepository(ctx context.Context, url string) error

	// RemoveRepository unregisters a repository
	RemoveRepository(ctx context.Context, url string) error

	// Refresh refreshes every repository's local cache, sequentially
	Refresh(ctx context.Context) error

	// Snapshot aggregates cached manifests across all repositories
	Snapshot(ctx context.Context) ([]RepositoryManifests, error)

	// Apps flattens the aggregate registry into one app list, keeping the
	// highest version when the same app appears in several repositories
	Apps(ctx context.Context) ([]manifest.Entry, error)
}

// Manager is the full registry lifecycle surface
type Manager interface {
	Service

	// Start seeds the repository list if needed, performs one synchronous
	// refresh pass, and arms the periodic refresh. Idempotent while running.
	Start(ctx context.Context) error

	// Stop cancels future refresh ticks and waits for the loop to exit.
	// An in-flight pass completes. No-op if never started.
	Stop() error

	// ListSources builds one source per persisted repository URL, in order
	ListSources(ctx context.Context) ([]sources.Source, error)

	// Registry returns per-repository manifest sequences in list order,
	// omitting repositories whose cache cannot be read
	Registry(ctx context.Context) ([][]manifest.Entry, error)
}

// Config holds the registry manager settings
type Config struct {
	// DefaultRepository is seeded the first time the daemon starts with an
	// empty store
	DefaultRepository string

	// RefreshInterval is the period between background refresh passes
	RefreshInterval time.Duration
}

// defaultManager is the default implementation of Manager
type defaultManager struct {
	store   store.Store
	factory sources.Factory
	config  Config

	// Lifecycle management
	mu         sync.Mutex
	running    bool
	cancelFunc context.CancelFunc
	done       chan struct{}

	// Metrics
	refreshMetrics *telemetry.RefreshMetrics
}

// Option is a function that configures the manager
type Option func(*defaultManager)

// WithRefreshMetrics sets the refresh metrics for the manager
func WithRefreshMetrics(metrics *telemetry.RefreshMetrics) Option {
	return func(m *defaultManager) {
		m.refreshMetrics = metrics
	}
}

// New creates a registry manager with injected dependencies
func New(st store.Store, factory sources.Factory, cfg Config, opts ...Option) Manager {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	m := &defaultManager{
		store:   st,
		factory: factory,
		config:  cfg,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start seeds the default repository on first run, refreshes synchronously so
// callers observe a populated cache, then arms the periodic refresh ticker.
// The ticker does not fire immediately; the startup pass is the first one.
func (m *defaultManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		slog.Debug("Registry manager already running, ignoring Start")
		return nil
	}
	m.mu.Unlock()

	if err := m.ensureDefaultRepository(ctx); err != nil {
		return fmt.Errorf("failed to initialize repository list: %w", err)
	}

	// Synchronous first pass so the cache is populated when Start returns
	if err := m.Refresh(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		// Lost a race with a concurrent Start; the other caller's loop is
		// already armed
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancelFunc = cancel
	m.done = make(chan struct{})
	m.running = true

	slog.Info("Starting periodic repository refresh",
		"interval", m.config.RefreshInterval)

	go m.refreshLoop(loopCtx)

	return nil
}

// refreshLoop runs refresh passes at the configured interval until cancelled
func (m *defaultManager) refreshLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// The loop context only signals loop exit. The pass itself runs
			// detached so Stop never interrupts work already in flight.
			if err := m.Refresh(context.WithoutCancel(ctx)); err != nil {
				slog.Error("Periodic refresh pass failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("Stopping periodic repository refresh")
			return
		}
	}
}

// Stop cancels future ticks and waits for the refresh loop to exit
func (m *defaultManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.cancelFunc()
	<-m.done
	m.running = false

	return nil
}

// ensureDefaultRepository seeds the list with the configured default the
// first time the daemon starts against an empty store. One-time migration,
// never re-checked afterwards.
func (m *defaultManager) ensureDefaultRepository(ctx context.Context) error {
	return m.store.WithExclusiveAccess(ctx, repositoriesKey, func(tx store.Accessor) error {
		_, err := m.readList(ctx, tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUninitialized) {
			return err
		}

		slog.Info("No repository list found, seeding default repository",
			"repository", m.config.DefaultRepository)
		return m.writeList(ctx, tx, []string{m.config.DefaultRepository})
	})
}

// ListRepositories returns the persisted repository URLs in insertion order.
// The list is read from the store on every call, never cached.
func (m *defaultManager) ListRepositories(ctx context.Context) ([]string, error) {
	return m.readList(ctx, m.store)
}

// ListSources constructs one source per repository URL, preserving order.
// An entry no source can be built for (written by an older release, or by
// hand) is logged and skipped; it must not take the remaining repositories
// down with it.
func (m *defaultManager) ListSources(ctx context.Context) ([]sources.Source, error) {
	urls, err := m.readList(ctx, m.store)
	if err != nil {
		return nil, err
	}

	srcs := make([]sources.Source, 0, len(urls))
	for _, url := range urls {
		src, err := m.factory.CreateSource(url)
		if err != nil {
			slog.Warn("Skipping repository with no usable source",
				"repository", url,
				"error", err)
			continue
		}
		srcs = append(srcs, src)
	}

	return srcs, nil
}

// Refresh updates every repository's local cache, strictly in list order and
// one at a time. A failing repository is logged and skipped; it never aborts
// the pass. Only a failure to list the sources themselves propagates.
func (m *defaultManager) Refresh(ctx context.Context) error {
	srcs, err := m.ListSources(ctx)
	if err != nil {
		return err
	}

	slog.Debug("Starting refresh pass", "repositories", len(srcs))

	for _, src := range srcs {
		startTime := time.Now()
		err := src.Refresh(ctx)
		m.refreshMetrics.RecordRefreshDuration(ctx, src.URL(), time.Since(startTime), err == nil)

		if err != nil {
			slog.Error("Failed to refresh repository",
				"repository", src.URL(),
				"error", err)
			continue
		}
	}

	m.refreshMetrics.RecordRepositoriesTotal(ctx, int64(len(srcs)))

	return nil
}

// Snapshot reads every repository's cached manifests concurrently and
// reassembles the results in repository-list order. Repositories whose cache
// cannot be read are omitted entirely, never returned as empty entries.
func (m *defaultManager) Snapshot(ctx context.Context) ([]RepositoryManifests, error) {
	srcs, err := m.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	// Indexed slice keeps output order independent of completion order
	results := make([]*RepositoryManifests, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			entries, err := src.ReadManifests(ctx)
			if err != nil {
				slog.Warn("Skipping repository with unreadable manifests",
					"repository", src.URL(),
					"error", err)
				return
			}
			results[i] = &RepositoryManifests{
				Repository: src.URL(),
				Apps:       entries,
			}
		}(i, src)
	}
	wg.Wait()

	snapshot := make([]RepositoryManifests, 0, len(results))
	for _, r := range results {
		if r != nil {
			snapshot = append(snapshot, *r)
		}
	}

	return snapshot, nil
}

// Registry returns the aggregate registry as per-repository manifest
// sequences, in repository-list order
func (m *defaultManager) Registry(ctx context.Context) ([][]manifest.Entry, error) {
	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]manifest.Entry, 0, len(snapshot))
	for _, repo := range snapshot {
		out = append(out, repo.Apps)
	}
	return out, nil
}

// AddRepository appends a repository URL to the persisted list and refreshes
// it before returning, so callers can rely on the new repository being
// initialized rather than merely listed
func (m *defaultManager) AddRepository(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}

	// Reject URLs no source can be built for before touching the list, so a
	// persisted entry is always constructable
	src, err := m.factory.CreateSource(url)
	if err != nil {
		return err
	}

	err = m.store.WithExclusiveAccess(ctx, repositoriesKey, func(tx store.Accessor) error {
		urls, err := m.readList(ctx, tx)
		if err != nil {
			return err
		}

		if slices.Contains(urls, url) {
			return fmt.Errorf("%s: %w", url, ErrAlreadyExists)
		}

		return m.writeList(ctx, tx, dedupe(append(urls, url)))
	})
	if err != nil {
		return err
	}

	slog.Info("Registered repository", "repository", url)

	// Initialize the new repository's cache outside the lock; a slow fetch
	// must not block other mutators
	if err := src.Refresh(ctx); err != nil {
		return fmt.Errorf("repository %s registered but initial refresh failed: %w", url, err)
	}

	return nil
}

// RemoveRepository removes a repository URL from the persisted list.
// Cached artifacts of the removed repository are left on disk.
func (m *defaultManager) RemoveRepository(ctx context.Context, url string) error {
	err := m.store.WithExclusiveAccess(ctx, repositoriesKey, func(tx store.Accessor) error {
		urls, err := m.readList(ctx, tx)
		if err != nil {
			return err
		}

		if !slices.Contains(urls, url) {
			return fmt.Errorf("%s: %w", url, ErrNotFound)
		}

		filtered := make([]string, 0, len(urls)-1)
		for _, u := range urls {
			if u != url {
				filtered = append(filtered, u)
			}
		}
		return m.writeList(ctx, tx, filtered)
	})
	if err != nil {
		return err
	}

	slog.Info("Unregistered repository", "repository", url)
	return nil
}

// Apps flattens the aggregate registry into a single deduplicated app list
func (m *defaultManager) Apps(ctx context.Context) ([]manifest.Entry, error) {
	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return mergeApps(snapshot), nil
}

// readList reads the repository list via the given accessor
func (*defaultManager) readList(ctx context.Context, acc store.Accessor) ([]string, error) {
	raw, err := acc.Get(ctx, repositoriesKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrUninitialized
		}
		return nil, err
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("persisted repository list is corrupt: %w", err)
	}
	return urls, nil
}

// writeList persists the repository list via the given accessor
func (*defaultManager) writeList(ctx context.Context, acc store.Accessor, urls []string) error {
	raw, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode repository list: %w", err)
	}
	return acc.Set(ctx, repositoriesKey, raw)
}

// dedupe removes duplicate URLs, keeping first occurrences in order
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

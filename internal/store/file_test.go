package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestFileStore_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	t.Run("get absent key returns ErrKeyNotFound", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("set then get returns written value", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "repositories", []byte(`["a"]`)))

		got, err := s.Get(ctx, "repositories")
		require.NoError(t, err)
		assert.Equal(t, []byte(`["a"]`), got)
	})

	t.Run("set overwrites previous value", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "repositories", []byte(`["a","b"]`)))

		got, err := s.Get(ctx, "repositories")
		require.NoError(t, err)
		assert.Equal(t, []byte(`["a","b"]`), got)
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		err := s.Set(ctx, "../escape", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid store key")
	})
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "repositories", []byte(`["a"]`)))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := s2.Get(ctx, "repositories")
	require.NoError(t, err)
	assert.Equal(t, []byte(`["a"]`), got)
}

func TestFileStore_WithExclusiveAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.WithExclusiveAccess(ctx, "counter", func(tx Accessor) error {
		return tx.Set(ctx, "counter", []byte("0"))
	})
	require.NoError(t, err)

	// Concurrent read-modify-write increments must not lose updates.
	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithExclusiveAccess(ctx, "counter", func(tx Accessor) error {
				raw, err := tx.Get(ctx, "counter")
				if err != nil {
					return err
				}
				var n int
				if err := json.Unmarshal(raw, &n); err != nil {
					return err
				}
				next, err := json.Marshal(n + 1)
				if err != nil {
					return err
				}
				return tx.Set(ctx, "counter", next)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	raw, err := s.Get(ctx, "counter")
	require.NoError(t, err)

	var n int
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, workers, n)
}

func TestFileStore_WithExclusiveAccessPropagatesError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.WithExclusiveAccess(ctx, "repositories", func(tx Accessor) error {
		_, err := tx.Get(ctx, "repositories")
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

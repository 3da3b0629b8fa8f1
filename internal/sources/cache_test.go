package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheStore_SaveLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewFileCacheStore(t.TempDir())

	const url = "https://apps.example/index.json"

	t.Run("load before save fails", func(t *testing.T) {
		idx, err := cache.Load(ctx, url)
		require.Error(t, err)
		assert.Nil(t, idx)
		assert.Contains(t, err.Error(), "no cached index")
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		data := []byte(`{"apps":[{"name":"editor","version":"1.0.0"}]}`)
		require.NoError(t, cache.Save(ctx, url, data))

		idx, err := cache.Load(ctx, url)
		require.NoError(t, err)
		require.Len(t, idx.Apps, 1)
		assert.Equal(t, "editor", idx.Apps[0].Name)
	})

	t.Run("save overwrites previous cache", func(t *testing.T) {
		data := []byte(`{"apps":[{"name":"editor"},{"name":"terminal"}]}`)
		require.NoError(t, cache.Save(ctx, url, data))

		idx, err := cache.Load(ctx, url)
		require.NoError(t, err)
		assert.Len(t, idx.Apps, 2)
	})

	t.Run("corrupt cached data fails load", func(t *testing.T) {
		const badURL = "https://broken.example/index.json"
		require.NoError(t, cache.Save(ctx, badURL, []byte("not json")))

		_, err := cache.Load(ctx, badURL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid")
	})
}

func TestFileCacheStore_SeparateURLsDoNotCollide(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewFileCacheStore(t.TempDir())

	require.NoError(t, cache.Save(ctx, "https://a.example/index.json", []byte(`{"apps":[{"name":"a"}]}`)))
	require.NoError(t, cache.Save(ctx, "https://b.example/index.json", []byte(`{"apps":[{"name":"b"}]}`)))

	idxA, err := cache.Load(ctx, "https://a.example/index.json")
	require.NoError(t, err)
	idxB, err := cache.Load(ctx, "https://b.example/index.json")
	require.NoError(t, err)

	assert.Equal(t, "a", idxA.Apps[0].Name)
	assert.Equal(t, "b", idxB.Apps[0].Name)
}

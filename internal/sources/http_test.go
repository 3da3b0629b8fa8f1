package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caskhub/caskd/internal/httpclient"
)

func TestHTTPSource_RefreshAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"apps":[{"name":"editor","version":"1.2.0"},{"name":"terminal"}]}`))
	}))
	server.Config.SetKeepAlivesEnabled(false)
	defer server.Close()

	cache := NewFileCacheStore(t.TempDir())
	source := newHTTPSource(server.URL, httpclient.NewDefaultClient(5*time.Second), cache)

	t.Run("read before refresh fails", func(t *testing.T) {
		_, err := source.ReadManifests(ctx)
		require.Error(t, err)
	})

	t.Run("refresh then read returns entries", func(t *testing.T) {
		require.NoError(t, source.Refresh(ctx))

		entries, err := source.ReadManifests(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "editor", entries[0].Name)
		assert.Equal(t, "terminal", entries[1].Name)
	})
}

func TestHTTPSource_FailedRefreshKeepsPriorCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	invalid := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if invalid {
			_, _ = w.Write([]byte(`{"apps":[{"version":"no name"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"apps":[{"name":"editor"}]}`))
	}))
	server.Config.SetKeepAlivesEnabled(false)
	defer server.Close()

	cache := NewFileCacheStore(t.TempDir())
	source := newHTTPSource(server.URL, httpclient.NewDefaultClient(5*time.Second), cache)

	require.NoError(t, source.Refresh(ctx))

	// The remote starts serving bad data; refresh must fail but the cached
	// index must keep serving the last good entries.
	invalid = true
	err := source.Refresh(ctx)
	require.Error(t, err)

	entries, err := source.ReadManifests(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "editor", entries[0].Name)
}

func TestHTTPSource_RefreshFailsOnHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	server.Config.SetKeepAlivesEnabled(false)
	defer server.Close()

	cache := NewFileCacheStore(t.TempDir())
	source := newHTTPSource(server.URL, httpclient.NewDefaultClient(5*time.Second), cache)

	err := source.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch index")
}

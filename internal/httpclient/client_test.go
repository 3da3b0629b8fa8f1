package httpclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caskhub/caskd/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestNewDefaultClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{
			name:    "create client with custom timeout",
			timeout: 5 * time.Second,
		},
		{
			name:    "create client with zero timeout uses default",
			timeout: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(tt.timeout)
			require.NotNil(t, client, "client should not be nil")
		})
	}
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	t.Run("successful response returns body and sets headers", func(t *testing.T) {
		t.Parallel()

		var receivedUserAgent string
		var receivedAccept string

		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedUserAgent = r.Header.Get("User-Agent")
			receivedAccept = r.Header.Get("Accept")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"apps":[]}`))
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(30 * time.Second)
		body, err := client.Get(context.Background(), mockServer.URL)

		require.NoError(t, err)
		assert.Equal(t, []byte(`{"apps":[]}`), body)
		assert.Equal(t, httpclient.UserAgent, receivedUserAgent)
		assert.Equal(t, "application/json", receivedAccept)
	})

	t.Run("4xx response fails without retry", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int32
		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(30 * time.Second)
		_, err := client.Get(context.Background(), mockServer.URL)

		require.Error(t, err)
		var httpErr *httpclient.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.Equal(t, int32(1), requests.Load(), "client errors must not be retried")
	})

	t.Run("5xx response is retried until success", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int32
		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if requests.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(30 * time.Second)
		body, err := client.Get(context.Background(), mockServer.URL)

		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), body)
		assert.GreaterOrEqual(t, requests.Load(), int32(2))
	})

	t.Run("persistent 5xx eventually fails", func(t *testing.T) {
		t.Parallel()

		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(30 * time.Second)
		_, err := client.Get(context.Background(), mockServer.URL)

		require.Error(t, err)
		var httpErr *httpclient.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	})

	t.Run("invalid URL fails", func(t *testing.T) {
		t.Parallel()

		client := httpclient.NewDefaultClient(30 * time.Second)
		_, err := client.Get(context.Background(), "://not-a-url")

		require.Error(t, err)
	})
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := httpclient.NewHTTPError(404, "http://example.com/index.json", "Not Found")
	require.Error(t, err)
	assert.Equal(t, "HTTP 404 for URL http://example.com/index.json: Not Found", err.Error())
}

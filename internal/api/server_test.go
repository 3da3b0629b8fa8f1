package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caskhub/caskd/internal/api"
	"github.com/caskhub/caskd/internal/manifest"
	"github.com/caskhub/caskd/internal/registry"
)

type nopService struct{}

func (nopService) ListRepositories(_ context.Context) ([]string, error) { return nil, nil }
func (nopService) AddRepository(_ context.Context, _ string) error      { return nil }
func (nopService) RemoveRepository(_ context.Context, _ string) error   { return nil }
func (nopService) Refresh(_ context.Context) error                      { return nil }
func (nopService) Snapshot(_ context.Context) ([]registry.RepositoryManifests, error) {
	return nil, nil
}
func (nopService) Apps(_ context.Context) ([]manifest.Entry, error) { return nil, nil }

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(api.NewServer(nopService{}))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetricsEndpointMounted(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(api.NewServer(nopService{}, api.WithMetricsHandler(metrics)))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointAbsentByDefault(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(api.NewServer(nopService{}))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestV1Mounted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(api.NewServer(nopService{}, api.WithMiddlewares(api.LoggingMiddleware)))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/v1/repositories")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

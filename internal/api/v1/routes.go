// Package v1 provides the REST API handlers for registry access and
// repository management.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caskhub/caskd/internal/registry"
)

// RepositoriesResponse lists the registered repository URLs in order
type RepositoriesResponse struct {
	Repositories []string `json:"repositories"`
}

// AddRepositoryRequest registers a new repository
type AddRepositoryRequest struct {
	URL string `json:"url"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the registry API with dependency injection
type Routes struct {
	service registry.Service
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc registry.Service) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates a new router for the registry API
func Router(svc registry.Service) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/repositories", routes.listRepositories)
	r.Post("/repositories", routes.addRepository)
	r.Delete("/repositories", routes.removeRepository)

	r.Post("/refresh", routes.refresh)
	r.Get("/registry", routes.getRegistry)
	r.Get("/apps", routes.listApps)

	return r
}

// listRepositories handles GET /v1/repositories
func (rr *Routes) listRepositories(w http.ResponseWriter, r *http.Request) {
	urls, err := rr.service.ListRepositories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RepositoriesResponse{Repositories: urls})
}

// addRepository handles POST /v1/repositories
func (rr *Routes) addRepository(w http.ResponseWriter, r *http.Request) {
	var req AddRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if err := rr.service.AddRepository(r.Context(), req.URL); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddRepositoryRequest{URL: req.URL})
}

// removeRepository handles DELETE /v1/repositories?url=...
func (rr *Routes) removeRepository(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	if err := rr.service.RemoveRepository(r.Context(), url); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// refresh handles POST /v1/refresh
func (rr *Routes) refresh(w http.ResponseWriter, r *http.Request) {
	if err := rr.service.Refresh(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// getRegistry handles GET /v1/registry
func (rr *Routes) getRegistry(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rr.service.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// listApps handles GET /v1/apps
func (rr *Routes) listApps(w http.ResponseWriter, r *http.Request) {
	apps, err := rr.service.Apps(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// writeServiceError maps service errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrUninitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

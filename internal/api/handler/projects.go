package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/videoforge/videoforge/internal/api/response"
	"github.com/videoforge/videoforge/internal/catalog"
)

// NewListProjectsHandler returns the handler for GET /api/v1/projects. It
// pages through the catalog of finished projects, newest first.
func NewListProjectsHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 20
		}

		projects, total, err := store.ListProjects(r.Context(), limit, (page-1)*limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects", nil)
			return
		}

		response.Collection(w, projects, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetProjectHandler returns the handler for GET /api/v1/projects/{projectID}.
func NewGetProjectHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "projectID must be a UUID", nil)
			return
		}

		p, err := store.GetProject(r.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown project id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project", nil)
			return
		}
		response.JSON(w, p)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

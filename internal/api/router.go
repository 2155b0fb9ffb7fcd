package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/videoforge/videoforge/internal/api/middleware"
	"github.com/videoforge/videoforge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SubmitJobHandler http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	JobEventsHandler http.HandlerFunc
	CancelJobHandler http.HandlerFunc

	PoolStatsHandler http.HandlerFunc

	ListProjectsHandler http.HandlerFunc
	GetProjectHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.SubmitJobHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Get("/api/v1/jobs/{jobID}/events", orNotImplemented(deps.JobEventsHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.CancelJobHandler))

		r.Get("/api/v1/pool/stats", orNotImplemented(deps.PoolStatsHandler))

		r.Get("/api/v1/projects", orNotImplemented(deps.ListProjectsHandler))
		r.Get("/api/v1/projects/{projectID}", orNotImplemented(deps.GetProjectHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

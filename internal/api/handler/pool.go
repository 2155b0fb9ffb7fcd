package handler

import (
	"net/http"

	"github.com/videoforge/videoforge/internal/api/response"
	"github.com/videoforge/videoforge/internal/cookiepool"
)

// NewPoolStatsHandler returns the handler for GET /api/v1/pool/stats.
func NewPoolStatsHandler(pool *cookiepool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, pool.Stats())
	}
}

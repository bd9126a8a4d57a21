package api

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		logger := requestLogger(r)
		if err := h.pinger.Ping(r.Context()); err != nil {
			logger.Warn().Err(err).Msg("storage ping failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Message: "storage unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "go-users is running",
	})
}

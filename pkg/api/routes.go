package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/user", h.HandleGetUser).Methods(http.MethodGet)
	router.HandleFunc("/user", h.HandleCreateUser).Methods(http.MethodPost)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}

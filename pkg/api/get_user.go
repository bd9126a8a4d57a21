package api

import (
	"net/http"

	"github.com/adfharrison1/go-users/pkg/domain"
)

// HandleGetUser handles GET /user, returning the featured user record
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	filter := domain.Filter{"id": FeaturedUserID}

	logger.Debug().
		Str("collection", h.collection).
		Interface("filter", filter).
		Msg("get user called")

	user, found, err := h.users.FindOne(r.Context(), h.database, h.collection, filter, nil)
	if err != nil {
		logger.Error().Err(err).Str("collection", h.collection).Msg("find user failed")
		WriteJSONError(w, http.StatusInternalServerError, "Unexpected error")
		return
	}
	if !found {
		logger.Warn().Str("collection", h.collection).Interface("filter", filter).Msg("user not found")
		WriteJSONError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

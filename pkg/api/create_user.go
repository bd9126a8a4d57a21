package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adfharrison1/go-users/pkg/domain"
)

// CreateUserResponse is the body returned by POST /user on success
type CreateUserResponse struct {
	Success    bool   `json:"success"`
	InsertedID string `json:"insertedID"`
}

// FailureResponse is the body returned by POST /user when the insert fails
type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleCreateUser handles POST /user, inserting the user in the request body
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	logger.Debug().Str("collection", h.collection).Msg("create user called")

	var user domain.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		var missing *domain.MissingFieldError
		if errors.As(err, &missing) {
			logger.Debug().Err(err).Msg("rejected user body")
			WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger.Debug().Err(err).Msg("decoding body failed")
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.users.InsertOne(r.Context(), h.database, h.collection, user, nil)
	if err != nil {
		logger.Error().Err(err).Str("collection", h.collection).Uint32("user_id", user.ID).Msg("insert user failed")
		writeJSON(w, http.StatusInternalServerError, FailureResponse{
			Success: false,
			Message: "Unexpected error",
		})
		return
	}

	logger.Info().
		Str("collection", h.collection).
		Str("inserted_id", result.InsertedID).
		Msg("user created")
	writeJSON(w, http.StatusOK, CreateUserResponse{
		Success:    true,
		InsertedID: result.InsertedID,
	})
}

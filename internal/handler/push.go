package handler

import (
	"net/http"

	"github.com/friendlychat-dev/friendlychat/internal/middleware"
	"github.com/friendlychat-dev/friendlychat/internal/utils"
)

type registerTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterPushToken stores a device token for the signed-in user so
// notifications can reach them across sessions.
func (h *Handler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteErrorAndStatusCode(w, errAuthRequired)
		return
	}

	var req registerTokenRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.notifier.RegisterToken(r.Context(), user.Id, req.Token); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnregisterPushToken drops a device token, stopping notifications for
// that device.
func (h *Handler) UnregisterPushToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteErrorAndStatusCode(w, errAuthRequired)
		return
	}

	var req registerTokenRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.notifier.UnregisterToken(r.Context(), req.Token); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

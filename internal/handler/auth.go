package handler

import (
	"net/http"
	"time"

	e "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/utils"
)

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Admin     bool   `json:"admin"`
}

// Login verifies credentials and issues a signed session token, both as
// a cookie and in the response body so non-browser clients can use it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	token, user, err := h.auth.Login(req.Name, req.Password)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.Public.JwtTTL),
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, loginResponse{
		Token:     token,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Admin:     user.Admin,
	})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout()
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusOK)
}

var errAuthRequired = &e.ErrorWithStatusCode{Message: "You must sign-in first", StatusCode: http.StatusUnauthorized}

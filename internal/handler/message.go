package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	e "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/feed"
	"github.com/friendlychat-dev/friendlychat/internal/middleware"
	"github.com/friendlychat-dev/friendlychat/internal/utils"
)

// keep uploads bounded well above the sniffing needs but below abuse
const maxUploadBytes = 10 << 20

type createMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type createMessageResponse struct {
	Id string `json:"id"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteErrorAndStatusCode(w, errAuthRequired)
		return
	}

	var req createMessageRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	id, err := h.chat.Post(r.Context(), user.Name, user.AvatarURL, req.Text)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, createMessageResponse{Id: id})
}

// CreateImageMessage accepts a multipart upload under the "image" field.
func (h *Handler) CreateImageMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteErrorAndStatusCode(w, errAuthRequired)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, &e.ErrorWithStatusCode{Message: "Missing image upload", StatusCode: http.StatusBadRequest})
		return
	}
	defer file.Close()

	id, err := h.chat.PostImage(r.Context(), user.Name, user.AvatarURL, file)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, createMessageResponse{Id: id})
}

type pageResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// GetMessages serves one page of history, newest first. An optional
// ?before=<id> cursor bounds the page to records strictly older than
// that message.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Public.OlderPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			utils.WriteErrorAndStatusCode(w, &e.ErrorWithStatusCode{Message: "Invalid limit", StatusCode: http.StatusBadRequest})
			return
		}
		limit = n
	}

	var cursor *domain.Message
	if before := r.URL.Query().Get("before"); before != "" {
		msg, err := h.source.GetMessage(r.Context(), before)
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		cursor = msg
	}

	msgs, err := h.source.FetchPage(r.Context(), cursor, limit)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, pageResponse{Messages: toMessageResponses(msgs)})
}

func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	has, err := h.source.HasFavorites(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if !has {
		utils.WriteErrorAndStatusCode(w, feed.ErrNoFavorites)
		return
	}

	msgs, err := h.source.FetchFavorites(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, pageResponse{Messages: toMessageResponses(msgs)})
}

type toggleFavoriteResponse struct {
	Id       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	favorite, err := h.chat.ToggleFavorite(r.Context(), id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, toggleFavoriteResponse{Id: id, Favorite: favorite})
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.chat.Delete(r.Context(), id); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessages implements the bulk wipe. Only keep=favorites is
// supported; when nothing is favorited the caller must send confirm=true
// to acknowledge a full wipe.
func (h *Handler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("keep") != "favorites" {
		utils.WriteErrorAndStatusCode(w, &e.ErrorWithStatusCode{Message: "Unsupported deletion mode", StatusCode: http.StatusBadRequest})
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	err := h.chat.DeleteAllExceptFavorites(r.Context(), func() bool { return confirmed })
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

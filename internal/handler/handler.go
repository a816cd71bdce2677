package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/friendlychat-dev/friendlychat/internal/auth"
	"github.com/friendlychat-dev/friendlychat/internal/config"
	"github.com/friendlychat-dev/friendlychat/internal/domain"
	"github.com/friendlychat-dev/friendlychat/internal/feed"
	"github.com/friendlychat-dev/friendlychat/internal/push"
	"github.com/friendlychat-dev/friendlychat/internal/service"
)

// FeedReader is the read side of the feed the HTTP surface exposes.
type FeedReader interface {
	feed.Source
	GetMessage(ctx context.Context, id domain.MsgId) (*domain.Message, error)
}

// MediaReader serves stored image blobs.
type MediaReader interface {
	Read(filePath string) (io.ReadCloser, error)
}

type Handler struct {
	auth     *auth.Service
	chat     service.ChatService
	source   FeedReader
	media    MediaReader
	notifier *push.Notifier
	hub      *push.Hub
	cfg      *config.Config
}

func New(authService *auth.Service, chat service.ChatService, source FeedReader, media MediaReader, notifier *push.Notifier, hub *push.Hub, cfg *config.Config) *Handler {
	return &Handler{authService, chat, source, media, notifier, hub, cfg}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Print(err.Error())
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
}

// MessageResponse is the wire form of one message.
type MessageResponse struct {
	Id        domain.MsgId `json:"id"`
	Author    string       `json:"author"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	Text      string       `json:"text,omitempty"`
	ImageURL  string       `json:"image_url,omitempty"`
	CreatedMs int64        `json:"created_ms"`
	Favorite  bool         `json:"favorite"`
}

func toMessageResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		Id:        m.Id,
		Author:    m.Author,
		AvatarURL: m.AvatarURL,
		CreatedMs: m.Millis(),
		Favorite:  m.Favorite,
	}
	switch m.Body.Kind {
	case domain.BodyText:
		resp.Text = m.Body.Text
	case domain.BodyImage:
		resp.ImageURL = m.Body.ImageURL
	}
	return resp
}

func toMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	return out
}

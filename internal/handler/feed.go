package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/friendlychat-dev/friendlychat/internal/auth"
	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/feed"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
	"github.com/friendlychat-dev/friendlychat/internal/middleware"
	"github.com/friendlychat-dev/friendlychat/internal/render"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// feedEvent is one server-to-client frame on the feed socket.
type feedEvent struct {
	Type       string       `json:"type"` // render, remove, projection, notice
	Id         domain.MsgId `json:"id,omitempty"`
	Index      int          `json:"index"`
	HTML       string       `json:"html,omitempty"`
	Projection string       `json:"projection,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// feedCommand is one client-to-server frame.
type feedCommand struct {
	Action string `json:"action"` // load_older, toggle_favorites
}

// wsRenderer mirrors every cache change onto the connection's event
// channel, keeping the html renderer as the authoritative fragment
// store.
type wsRenderer struct {
	html *render.HTML
	out  chan feedEvent
	done <-chan struct{}
}

func (r *wsRenderer) RenderOrUpdate(msg domain.Message, index int) {
	r.html.RenderOrUpdate(msg, index)
	fragment, _ := r.html.Fragment(msg.Id)
	r.send(feedEvent{Type: "render", Id: msg.Id, Index: index, HTML: fragment})
}

func (r *wsRenderer) Remove(id domain.MsgId) {
	r.html.Remove(id)
	r.send(feedEvent{Type: "remove", Id: id})
}

// send gives up when the connection is gone instead of blocking the
// feed goroutine on a dead writer.
func (r *wsRenderer) send(ev feedEvent) {
	select {
	case r.out <- ev:
	case <-r.done:
	}
}

// Feed upgrades to a websocket and streams the rendered message feed:
// the recent window on connect, live deltas as they land, and older
// pages and projection switches on client command. Signed-in users
// that subscribed to push additionally receive notification frames.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	renderer := &wsRenderer{html: render.NewHTML(), out: make(chan feedEvent, 64), done: ctx.Done()}
	view := feed.NewView(h.source, renderer, auth.NewSession(user), h.cfg.Public.RecentWindow, h.cfg.Public.OlderPageSize)

	notifications := make(chan []byte, 8)
	if user != nil {
		h.hub.Add(user.Id, notifications)
		defer h.hub.Remove(user.Id, notifications)
	}

	commands := make(chan feedCommand, 4)
	go h.readFeedCommands(ctx, cancel, conn, commands)
	go h.writeFeedFrames(ctx, conn, renderer.out, notifications)

	go func() {
		defer cancel()
		if err := view.Run(ctx); err != nil && ctx.Err() == nil {
			h.sendNotice(ctx, renderer.out, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-commands:
			h.runFeedCommand(ctx, view, renderer.out, cmd)
		}
	}
}

func (h *Handler) runFeedCommand(ctx context.Context, view *feed.View, out chan feedEvent, cmd feedCommand) {
	var err error
	switch cmd.Action {
	case "load_older":
		err = view.LoadOlder(ctx)
	case "toggle_favorites":
		err = view.Toggle(ctx)
		if err == nil {
			select {
			case out <- feedEvent{Type: "projection", Projection: view.Projection().String()}:
			case <-ctx.Done():
			}
		}
	default:
		err = &internal_errors.ErrorWithStatusCode{Message: "Unknown action", StatusCode: http.StatusBadRequest}
	}
	if err != nil {
		h.sendNotice(ctx, out, err)
	}
}

func (h *Handler) sendNotice(ctx context.Context, out chan feedEvent, err error) {
	msg := "Something went wrong"
	var httpErr *internal_errors.ErrorWithStatusCode
	if errors.As(err, &httpErr) {
		msg = httpErr.Message
	}
	select {
	case out <- feedEvent{Type: "notice", Message: msg}:
	case <-ctx.Done():
	}
}

// readFeedCommands is the connection's single reader. Any read error,
// including a client close, tears the connection down via cancel.
func (h *Handler) readFeedCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, commands chan<- feedCommand) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd feedCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("feed socket read error", "err", err)
			}
			return
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// writeFeedFrames is the connection's single writer. Feed events and
// push notifications funnel through here so the websocket never sees
// concurrent writes.
func (h *Handler) writeFeedFrames(ctx context.Context, conn *websocket.Conn, events <-chan feedEvent, notifications <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case payload := <-notifications:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

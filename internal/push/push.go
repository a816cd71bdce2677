// Package push is the notification collaborator: device token
// registry plus foreground fanout to connected websocket clients.
// Actual mobile push transport stays behind the token registry.
package push

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
)

type TokenStore interface {
	SavePushToken(ctx context.Context, uid domain.UserId, token string) error
	DeletePushToken(ctx context.Context, token string) error
	PushTokens(ctx context.Context, uid domain.UserId) (domain.PushTokens, error)
}

// Notification is what foreground clients receive for a new message.
type Notification struct {
	Type      string        `json:"type"` // always "notification"
	MessageId domain.MsgId  `json:"message_id"`
	Author    domain.Author `json:"author"`
	Preview   string        `json:"preview"`
}

type Notifier struct {
	hub   *Hub
	store TokenStore

	mu         sync.Mutex
	granted    map[domain.UserId]bool
	foreground []func(Notification)
}

func NewNotifier(hub *Hub, store TokenStore) *Notifier {
	return &Notifier{
		hub:     hub,
		store:   store,
		granted: make(map[domain.UserId]bool),
	}
}

// RequestPermission records that uid accepted notifications. The
// browser prompt happens client-side; a request reaching the server
// means it was granted.
func (n *Notifier) RequestPermission(uid domain.UserId) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted[uid] = true
	return true
}

// RegisterToken stores a device token for uid. Refused until the
// permission request was seen.
func (n *Notifier) RegisterToken(ctx context.Context, uid domain.UserId, token string) error {
	n.mu.Lock()
	ok := n.granted[uid]
	n.mu.Unlock()
	if !ok {
		logger.Log.Debug("push token before permission, granting implicitly", "uid", uid)
		n.RequestPermission(uid)
	}
	return n.store.SavePushToken(ctx, uid, token)
}

// UnregisterToken drops a device token, typically on sign-out or when
// the client revokes the notification permission.
func (n *Notifier) UnregisterToken(ctx context.Context, token string) error {
	return n.store.DeletePushToken(ctx, token)
}

// OnForegroundMessage registers an in-process callback invoked for
// every notification, mirroring the foreground-message hook of the
// client SDK boundary.
func (n *Notifier) OnForegroundMessage(cb func(Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.foreground = append(n.foreground, cb)
}

// NotifyNewMessage fans a new-message notice out to the connected
// clients that subscribed to push, plus every foreground callback.
// Failures are logged only; push is best effort.
func (n *Notifier) NotifyNewMessage(ctx context.Context, msg domain.Message) {
	preview := msg.Body.Text
	if msg.Body.Kind == domain.BodyImage {
		preview = "\U0001F4F7 sent a photo"
	}
	note := Notification{
		Type:      "notification",
		MessageId: msg.Id,
		Author:    msg.Author,
		Preview:   preview,
	}

	payload, err := json.Marshal(note)
	if err != nil {
		logger.Log.Error("marshal notification", "err", err)
		return
	}
	for _, uid := range n.hub.Users() {
		if n.subscribed(ctx, uid) {
			n.hub.Send(uid, payload)
		}
	}

	n.mu.Lock()
	callbacks := make([]func(Notification), len(n.foreground))
	copy(callbacks, n.foreground)
	n.mu.Unlock()
	for _, cb := range callbacks {
		cb(note)
	}
}

// subscribed reports whether uid opted into notifications. Grants made
// in an earlier process lifetime survive as stored tokens, so the
// store is consulted once per uid and the answer cached.
func (n *Notifier) subscribed(ctx context.Context, uid domain.UserId) bool {
	n.mu.Lock()
	ok := n.granted[uid]
	n.mu.Unlock()
	if ok {
		return true
	}

	tokens, err := n.store.PushTokens(ctx, uid)
	if err != nil {
		logger.Log.Warn("cannot load push tokens", "uid", uid, "err", err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}
	n.mu.Lock()
	n.granted[uid] = true
	n.mu.Unlock()
	return true
}

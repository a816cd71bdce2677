package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
)

const (
	feedChannel       = "feed_changes"
	listenMinInterval = 10 * time.Second
	listenMaxInterval = time.Minute
)

// notifyPayload mirrors the json built by the notify_feed_change trigger.
type notifyPayload struct {
	Kind string `json:"kind"`
	Id   string `json:"id"`
}

// SubscribeRecent opens a live delta stream for the feed. Deltas are
// produced from Postgres NOTIFY events; added/modified payloads are
// re-read from the table so subscribers get full records. The stream
// closes when ctx is done. limit sizes the initial window the caller
// renders; the stream itself carries every change.
func (s *Storage) SubscribeRecent(ctx context.Context, limit int) (<-chan domain.Delta, error) {
	listener := pq.NewListener(s.connStr, listenMinInterval, listenMaxInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Warn("feed listener event", "event", ev, "err", err)
		}
	})
	if err := listener.Listen(feedChannel); err != nil {
		listener.Close()
		return nil, err
	}

	deltas := make(chan domain.Delta)
	go s.pump(ctx, listener, deltas)

	// seed the subscription with the current recent window so a fresh
	// client renders without waiting for changes
	window, err := s.FetchPage(ctx, nil, limit)
	if err != nil {
		listener.Close()
		return nil, err
	}
	go func() {
		for i := len(window) - 1; i >= 0; i-- { // oldest first
			select {
			case deltas <- domain.Delta{Kind: domain.DeltaAdded, Message: window[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return deltas, nil
}

func (s *Storage) pump(ctx context.Context, listener *pq.Listener, deltas chan<- domain.Delta) {
	defer listener.Close()
	defer close(deltas)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection loss; pq re-establishes LISTEN itself
				continue
			}
			delta, ok := s.decodeNotification(ctx, n.Extra)
			if !ok {
				continue
			}
			select {
			case deltas <- delta:
			case <-ctx.Done():
				return
			}
		case <-time.After(listenMaxInterval):
			if err := listener.Ping(); err != nil {
				logger.Log.Error("feed listener ping failed", "err", err)
				return
			}
		}
	}
}

func (s *Storage) decodeNotification(ctx context.Context, payload string) (domain.Delta, bool) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		logger.Log.Warn("malformed feed notification", "payload", payload, "err", err)
		return domain.Delta{}, false
	}

	switch p.Kind {
	case "removed":
		return domain.Delta{Kind: domain.DeltaRemoved, Message: domain.Message{Id: p.Id}}, true
	case "added", "modified":
		msg, err := s.GetMessage(ctx, p.Id)
		if err != nil {
			// row already gone; the removal notification follows
			logger.Log.Debug("feed notification for missing row", "id", p.Id, "err", err)
			return domain.Delta{}, false
		}
		kind := domain.DeltaAdded
		if p.Kind == "modified" {
			kind = domain.DeltaModified
		}
		return domain.Delta{Kind: kind, Message: *msg}, true
	default:
		logger.Log.Warn("unknown feed notification kind", "kind", p.Kind)
		return domain.Delta{}, false
	}
}

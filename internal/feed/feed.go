// Package feed maintains the client-side view of the message stream:
// an ordered in-memory cache merging live deltas with paginated
// history fetches, plus the favorites projection on top of it.
package feed

import (
	"context"
	"errors"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
)

// Source is the remote feed the cache is a view of.
// FetchPage returns messages newest-first; a non-nil cursor is an
// exclusive upper bound (strictly older records only).
type Source interface {
	SubscribeRecent(ctx context.Context, limit int) (<-chan domain.Delta, error)
	FetchPage(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error)
	FetchFavorites(ctx context.Context) ([]domain.Message, error)
	HasMessages(ctx context.Context) (bool, error)
	HasFavorites(ctx context.Context) (bool, error)
}

// Renderer reflects cache changes on whatever displays the feed.
// index is the position in the ascending visual sequence where the
// entry belongs.
type Renderer interface {
	RenderOrUpdate(msg domain.Message, index int)
	Remove(id domain.MsgId)
}

// Session is the auth guard collaborator.
type Session interface {
	SignedIn() bool
}

var (
	ErrAuthRequired = &internal_errors.ErrorWithStatusCode{Message: "You must sign-in first", StatusCode: 401}
	ErrNoMessages   = &internal_errors.ErrorWithStatusCode{Message: "There are no messages yet", StatusCode: 412}
	ErrNoFavorites  = &internal_errors.ErrorWithStatusCode{Message: "There are no favorite messages yet", StatusCode: 412}

	// ErrCacheCorrupted means a tracked entry lost its timestamp marker.
	// This is a programming error, not a recoverable condition.
	ErrCacheCorrupted = errors.New("feed: rendered entry without timestamp marker")
)

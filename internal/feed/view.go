package feed

import (
	"context"
	"sync"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
)

// Projection selects which subset of the remote feed is rendered.
type Projection int

const (
	ProjectionAll Projection = iota
	ProjectionFavorites
)

func (p Projection) String() string {
	if p == ProjectionFavorites {
		return "favorites"
	}
	return "all"
}

// View owns the cache and drives it from user actions and live deltas.
// State mutations run under the mutex; remote fetches happen outside
// it, so deltas and other actions can interleave with an in-flight
// fetch. Every mutation is an idempotent upsert or evict, so the view
// converges regardless of interleaving order. A generation counter,
// bumped on every projection switch, lets completions that lost the
// race discard themselves instead of rendering a stale set.
type View struct {
	mu      sync.Mutex
	cache   *Cache
	source  Source
	session Session

	windowSize int
	pageSize   int

	projection Projection
	generation uint64
	pages      [][]domain.Message // loaded older pages, newest-to-oldest
}

func NewView(source Source, renderer Renderer, session Session, windowSize, pageSize int) *View {
	return &View{
		cache:      NewCache(renderer),
		source:     source,
		session:    session,
		windowSize: windowSize,
		pageSize:   pageSize,
	}
}

func (v *View) Projection() Projection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.projection
}

// Cache exposes the underlying cache for read-only inspection.
func (v *View) Cache() *Cache {
	return v.cache
}

// Run consumes the live subscription until ctx is done.
func (v *View) Run(ctx context.Context) error {
	deltas, err := v.source.SubscribeRecent(ctx, v.windowSize)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deltas:
			if !ok {
				return nil
			}
			if err := v.Apply(ctx, d); err != nil {
				return err
			}
		}
	}
}

// Apply integrates one live delta under the active projection.
func (v *View) Apply(ctx context.Context, d domain.Delta) error {
	v.mu.Lock()
	if v.projection == ProjectionAll {
		defer v.mu.Unlock()
		return v.cache.IntegrateLiveDelta(d.Kind, d.Message)
	}

	// Favorites projection: the visible set is favorited records only.
	switch {
	case d.Kind == domain.DeltaRemoved:
		v.cache.Evict(d.Message.Id)
	case d.Message.Favorite:
		if err := v.cache.Upsert(d.Message); err != nil {
			v.mu.Unlock()
			return err
		}
	case v.cache.Contains(d.Message.Id):
		// favorite flag cleared while the record is on screen
		v.cache.Evict(d.Message.Id)
	default:
		v.mu.Unlock()
		return nil
	}

	if v.cache.Len() == 0 {
		v.mu.Unlock()
		return v.ShowAll(ctx)
	}
	v.mu.Unlock()
	return nil
}

// LoadOlder fetches the next page of history below the current oldest
// loaded record. An empty page is a no-op; callers get no special
// signal for a short page. Under the favorites projection the complete
// favorited set is already on screen, so paging is a no-op too.
func (v *View) LoadOlder(ctx context.Context) error {
	v.mu.Lock()
	if v.session == nil || !v.session.SignedIn() {
		v.mu.Unlock()
		return ErrAuthRequired
	}
	if v.projection == ProjectionFavorites {
		v.mu.Unlock()
		return nil
	}
	gen := v.generation
	var cursor domain.Message
	havePages := len(v.pages) > 0
	if havePages {
		last := v.pages[len(v.pages)-1]
		cursor = last[len(last)-1]
	}
	v.mu.Unlock()

	if !havePages {
		ok, err := v.source.HasMessages(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoMessages
		}
		// the cursor for the first manual page is the oldest record of
		// the initial subscribed window
		window, err := v.source.FetchPage(ctx, nil, v.windowSize)
		if err != nil {
			return err
		}
		if len(window) == 0 {
			return ErrNoMessages
		}
		cursor = window[len(window)-1]
	}

	page, err := v.source.FetchPage(ctx, &cursor, v.pageSize)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		// a projection switch superseded this fetch
		return nil
	}
	if len(page) == 0 {
		return nil
	}
	if err := v.cache.AppendOlderPage(page); err != nil {
		return err
	}
	v.pages = append(v.pages, page)
	return nil
}

// Toggle flips between the recent window and the favorites projection.
func (v *View) Toggle(ctx context.Context) error {
	if v.Projection() == ProjectionAll {
		return v.ShowFavorites(ctx)
	}
	return v.ShowAll(ctx)
}

// ShowFavorites switches to the favorites projection. Refused with
// ErrNoFavorites when no favorited record exists remotely.
func (v *View) ShowFavorites(ctx context.Context) error {
	ok, err := v.source.HasFavorites(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoFavorites
	}

	gen := v.bumpGeneration()
	favs, err := v.source.FetchFavorites(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return nil
	}
	v.cache.ClearAll()
	if err := v.cache.AppendOlderPage(favs); err != nil {
		return err
	}
	v.projection = ProjectionFavorites
	return nil
}

// ShowAll switches back to the recent window. No precondition.
func (v *View) ShowAll(ctx context.Context) error {
	gen := v.bumpGeneration()
	window, err := v.source.FetchPage(ctx, nil, v.windowSize)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != gen {
		return nil
	}
	v.cache.ClearAll()
	if err := v.cache.AppendOlderPage(window); err != nil {
		return err
	}
	v.projection = ProjectionAll
	return nil
}

// bumpGeneration marks the start of a projection switch. The loaded
// pages history is tied to the projection being left, so it restarts
// here; the next LoadOlder derives its cursor from the fresh window.
func (v *View) bumpGeneration() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.pages = nil
	return v.generation
}

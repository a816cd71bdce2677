package feed

import (
	"time"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
)

// entry is one tracked message plus its placement marker. The marker is
// fixed when the entry is first inserted: records without a
// server-assigned timestamp are placed at the current wall-clock time,
// and keep that position when the real timestamp arrives.
type entry struct {
	msg    domain.Message
	millis int64 // timestamp marker, ms precision; 0 means corrupted
}

// Cache keeps messages in ascending visual order (oldest first) and
// mirrors every change onto the Renderer. Tracked ids correspond 1:1
// to rendered entries. Not safe for concurrent use; the owning View
// serializes access.
type Cache struct {
	renderer Renderer
	entries  []entry
	now      func() time.Time
}

func NewCache(renderer Renderer) *Cache {
	return &Cache{renderer: renderer, now: time.Now}
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Contains(id domain.MsgId) bool {
	return c.indexOf(id) >= 0
}

// VisibleIds returns the ids in ascending visual order.
func (c *Cache) VisibleIds() []domain.MsgId {
	ids := make([]domain.MsgId, len(c.entries))
	for i, e := range c.entries {
		ids[i] = e.msg.Id
	}
	return ids
}

// Get returns the tracked message for id.
func (c *Cache) Get(id domain.MsgId) (domain.Message, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return domain.Message{}, false
	}
	return c.entries[i].msg, true
}

func (c *Cache) indexOf(id domain.MsgId) int {
	for i, e := range c.entries {
		if e.msg.Id == id {
			return i
		}
	}
	return -1
}

// InsertionIndex returns the position in the ascending visual sequence
// where a message with the given timestamp belongs. Equal timestamps
// keep the earlier arrival earlier, so a new message sorts after
// existing ones with the same timestamp. Returns ErrCacheCorrupted if
// any tracked entry lost its timestamp marker.
func (c *Cache) InsertionIndex(millis int64) (int, error) {
	for i, e := range c.entries {
		if e.millis == 0 {
			return 0, ErrCacheCorrupted
		}
		if e.millis > millis {
			return i, nil
		}
	}
	return len(c.entries), nil
}

// placementMillis fixes the marker for a message: records the source
// has not timestamped yet are placed at "now".
func (c *Cache) placementMillis(msg *domain.Message) int64 {
	if msg.HasTimestamp() {
		return msg.Millis()
	}
	return c.now().UnixMilli()
}

// IntegrateLiveDelta applies one subscription delta. Removed evicts by
// id; Added and Modified upsert. All paths are idempotent.
func (c *Cache) IntegrateLiveDelta(kind domain.DeltaKind, msg domain.Message) error {
	if kind == domain.DeltaRemoved {
		c.Evict(msg.Id)
		return nil
	}
	return c.Upsert(msg)
}

// Upsert inserts msg at its timestamp position, or updates it in place
// keeping its original position if already tracked.
func (c *Cache) Upsert(msg domain.Message) error {
	if i := c.indexOf(msg.Id); i >= 0 {
		c.entries[i].msg = msg
		c.renderer.RenderOrUpdate(msg, i)
		return nil
	}

	millis := c.placementMillis(&msg)
	i, err := c.InsertionIndex(millis)
	if err != nil {
		return err
	}
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry{msg: msg, millis: millis}
	c.renderer.RenderOrUpdate(msg, i)
	return nil
}

// Evict removes id from the cache and the rendered view. Unknown ids
// are a no-op.
func (c *Cache) Evict(id domain.MsgId) {
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.renderer.Remove(id)
}

// AppendOlderPage integrates a page fetched below the current oldest
// loaded record. msgs arrive newest-first; they are upserted
// oldest-to-newest so the final visual order stays ascending. An empty
// page is a no-op.
func (c *Cache) AppendOlderPage(msgs []domain.Message) error {
	for i := len(msgs) - 1; i >= 0; i-- {
		if err := c.Upsert(msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll evicts every tracked record and removes its rendered entry.
func (c *Cache) ClearAll() {
	for _, e := range c.entries {
		c.renderer.Remove(e.msg.Id)
	}
	c.entries = c.entries[:0]
}

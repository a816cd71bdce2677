// Package render turns cached messages into sanitized HTML fragments
// for the web client. It is the feed's renderer boundary: the cache
// decides what is visible and where, this package decides how it looks.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	"github.com/friendlychat-dev/friendlychat/internal/feed"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
)

// HTML keeps one sanitized fragment per visible message, in ascending
// visual order. Safe for concurrent use.
type HTML struct {
	mu        sync.RWMutex
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	order     []domain.MsgId
	fragments map[domain.MsgId]string
}

var _ feed.Renderer = (*HTML)(nil)

func NewHTML() *HTML {
	// chat messages only need a narrow subset of markdown
	p := parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
		parser.WithInlineParsers(
			util.Prioritized(parser.NewCodeSpanParser(), 100),
			util.Prioritized(parser.NewEmphasisParser(), 500),
		),
	)
	md := goldmark.New(
		goldmark.WithParser(p),
		goldmark.WithExtensions(extension.Strikethrough),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("div", "span", "img", "p")
	policy.AllowAttrs("id", "data-ts").OnElements("div")
	policy.AllowRelativeURLs(true)

	return &HTML{
		md:        md,
		policy:    policy,
		fragments: make(map[domain.MsgId]string),
	}
}

func (h *HTML) RenderOrUpdate(msg domain.Message, index int) {
	fragment := h.renderFragment(&msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fragments[msg.Id]; ok {
		h.fragments[msg.Id] = fragment
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(h.order) {
		index = len(h.order)
	}
	h.order = append(h.order, "")
	copy(h.order[index+1:], h.order[index:])
	h.order[index] = msg.Id
	h.fragments[msg.Id] = fragment
}

func (h *HTML) Remove(id domain.MsgId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fragments[id]; !ok {
		return
	}
	delete(h.fragments, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Fragment returns the rendered html for one message.
func (h *HTML) Fragment(id domain.MsgId) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.fragments[id]
	return f, ok
}

// Snapshot returns the whole visible list, oldest first.
func (h *HTML) Snapshot() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var b strings.Builder
	for _, id := range h.order {
		b.WriteString(h.fragments[id])
	}
	return b.String()
}

func (h *HTML) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

func (h *HTML) renderFragment(msg *domain.Message) string {
	star := ""
	if msg.Favorite {
		star = ` <span class="star">&#9733;</span>`
	}

	var body string
	switch msg.Body.Kind {
	case domain.BodyText:
		body = h.renderText(msg.Body.Text)
	case domain.BodyImage:
		body = fmt.Sprintf(`<img class="chat-image" src=%q>`, msg.Body.ImageURL)
	default:
		// upload still in flight
		body = `<span class="pending">&#8230;</span>`
	}

	avatar := ""
	if msg.AvatarURL != "" {
		avatar = fmt.Sprintf(`<img class="avatar" src=%q>`, msg.AvatarURL)
	}

	fragment := fmt.Sprintf(
		`<div class="message" id="msg-%s" data-ts="%d">%s<span class="author">%s</span>%s<div class="body">%s</div></div>`,
		msg.Id, msg.Millis(), avatar, html.EscapeString(msg.Author), star, body,
	)
	return h.policy.Sanitize(fragment)
}

func (h *HTML) renderText(text string) string {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		logger.Log.Warn("markdown convert failed", "err", err)
		return html.EscapeString(text)
	}
	return strings.TrimSpace(buf.String())
}

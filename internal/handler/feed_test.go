package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
)

func readFrame(t *testing.T, conn *websocket.Conn) feedEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev feedEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func msgWithTime(id domain.MsgId, text string, at time.Time) domain.Message {
	return domain.Message{Id: id, Author: "alice", Body: domain.TextBody(text), CreatedAt: at}
}

func TestFeedSocket(t *testing.T) {
	seed := []domain.Delta{
		{Kind: domain.DeltaAdded, Message: msgWithTime("m1", "first", time.Unix(1000, 0))},
		{Kind: domain.DeltaAdded, Message: msgWithTime("m2", "second", time.Unix(2000, 0))},
	}

	newSource := func() *MockFeedReader {
		return &MockFeedReader{
			MockSubscribeRecent: func(ctx context.Context, limit int) (<-chan domain.Delta, error) {
				ch := make(chan domain.Delta, len(seed))
				for _, d := range seed {
					ch <- d
				}
				return ch, nil
			},
		}
	}

	connect := func(t *testing.T, source *MockFeedReader) (*websocket.Conn, func()) {
		t.Helper()
		h := &Handler{source: source, cfg: testConfig()}
		srv := httptest.NewServer(http.HandlerFunc(h.Feed))
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return conn, func() {
			conn.Close()
			srv.Close()
		}
	}

	t.Run("streams the seeded window in order", func(t *testing.T) {
		conn, teardown := connect(t, newSource())
		defer teardown()

		first := readFrame(t, conn)
		assert.Equal(t, "render", first.Type)
		assert.Equal(t, "m1", first.Id)
		assert.Equal(t, 0, first.Index)
		assert.Contains(t, first.HTML, "first")

		second := readFrame(t, conn)
		assert.Equal(t, "m2", second.Id)
		assert.Equal(t, 1, second.Index)
	})

	t.Run("load_older without sign-in gets a notice", func(t *testing.T) {
		conn, teardown := connect(t, newSource())
		defer teardown()

		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(feedCommand{Action: "load_older"}))
		notice := readFrame(t, conn)
		assert.Equal(t, "notice", notice.Type)
		assert.Contains(t, notice.Message, "sign-in")
	})

	t.Run("toggle without favorites gets a notice", func(t *testing.T) {
		conn, teardown := connect(t, newSource())
		defer teardown()

		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(feedCommand{Action: "toggle_favorites"}))
		notice := readFrame(t, conn)
		assert.Equal(t, "notice", notice.Type)
		assert.Contains(t, notice.Message, "favorite")
	})

	t.Run("unknown action gets a notice", func(t *testing.T) {
		conn, teardown := connect(t, newSource())
		defer teardown()

		readFrame(t, conn)
		readFrame(t, conn)

		require.NoError(t, conn.WriteJSON(feedCommand{Action: "frobnicate"}))
		notice := readFrame(t, conn)
		assert.Equal(t, "notice", notice.Type)
	})
}

func TestFeedCommandReaderExitsOnShutdown(t *testing.T) {
	h := &Handler{cfg: testConfig()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := make(chan feedCommand)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		go func() {
			h.readFeedCommands(ctx, func() {}, conn, commands)
			close(done)
		}()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// first command proves the reader is up
	require.NoError(t, conn.WriteJSON(feedCommand{Action: "load_older"}))
	select {
	case <-commands:
	case <-time.After(2 * time.Second):
		t.Fatal("command never arrived")
	}

	// second command parks the reader on the undrained channel
	require.NoError(t, conn.WriteJSON(feedCommand{Action: "load_older"}))
	cancel()
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command reader did not exit after shutdown")
	}
}

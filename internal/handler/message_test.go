package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendlychat-dev/friendlychat/internal/config"
	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/middleware"
)

// MockChatService implements service.ChatService
type MockChatService struct {
	MockPost           func(ctx context.Context, author domain.Author, avatar domain.AvatarURL, text domain.MsgText) (domain.MsgId, error)
	MockPostImage      func(ctx context.Context, author domain.Author, avatar domain.AvatarURL, data io.Reader) (domain.MsgId, error)
	MockToggleFavorite func(ctx context.Context, id domain.MsgId) (bool, error)
	MockDelete         func(ctx context.Context, id domain.MsgId) error
	MockDeleteAll      func(ctx context.Context, confirm func() bool) error
}

func (m *MockChatService) Post(ctx context.Context, author domain.Author, avatar domain.AvatarURL, text domain.MsgText) (domain.MsgId, error) {
	if m.MockPost != nil {
		return m.MockPost(ctx, author, avatar, text)
	}
	return "id", nil
}

func (m *MockChatService) PostImage(ctx context.Context, author domain.Author, avatar domain.AvatarURL, data io.Reader) (domain.MsgId, error) {
	if m.MockPostImage != nil {
		return m.MockPostImage(ctx, author, avatar, data)
	}
	return "id", nil
}

func (m *MockChatService) ToggleFavorite(ctx context.Context, id domain.MsgId) (bool, error) {
	if m.MockToggleFavorite != nil {
		return m.MockToggleFavorite(ctx, id)
	}
	return false, nil
}

func (m *MockChatService) Delete(ctx context.Context, id domain.MsgId) error {
	if m.MockDelete != nil {
		return m.MockDelete(ctx, id)
	}
	return nil
}

func (m *MockChatService) DeleteAllExceptFavorites(ctx context.Context, confirm func() bool) error {
	if m.MockDeleteAll != nil {
		return m.MockDeleteAll(ctx, confirm)
	}
	return nil
}

// MockFeedReader implements FeedReader
type MockFeedReader struct {
	MockSubscribeRecent func(ctx context.Context, limit int) (<-chan domain.Delta, error)
	MockFetchPage       func(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error)
	MockFetchFavorites  func(ctx context.Context) ([]domain.Message, error)
	MockHasMessages     func(ctx context.Context) (bool, error)
	MockHasFavorites    func(ctx context.Context) (bool, error)
	MockGetMessage      func(ctx context.Context, id domain.MsgId) (*domain.Message, error)
}

func (m *MockFeedReader) SubscribeRecent(ctx context.Context, limit int) (<-chan domain.Delta, error) {
	if m.MockSubscribeRecent != nil {
		return m.MockSubscribeRecent(ctx, limit)
	}
	ch := make(chan domain.Delta)
	close(ch)
	return ch, nil
}

func (m *MockFeedReader) FetchPage(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error) {
	if m.MockFetchPage != nil {
		return m.MockFetchPage(ctx, cursor, limit)
	}
	return nil, nil
}

func (m *MockFeedReader) FetchFavorites(ctx context.Context) ([]domain.Message, error) {
	if m.MockFetchFavorites != nil {
		return m.MockFetchFavorites(ctx)
	}
	return nil, nil
}

func (m *MockFeedReader) HasMessages(ctx context.Context) (bool, error) {
	if m.MockHasMessages != nil {
		return m.MockHasMessages(ctx)
	}
	return false, nil
}

func (m *MockFeedReader) HasFavorites(ctx context.Context) (bool, error) {
	if m.MockHasFavorites != nil {
		return m.MockHasFavorites(ctx)
	}
	return false, nil
}

func (m *MockFeedReader) GetMessage(ctx context.Context, id domain.MsgId) (*domain.Message, error) {
	if m.MockGetMessage != nil {
		return m.MockGetMessage(ctx, id)
	}
	return nil, &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: http.StatusNotFound}
}

func testConfig() *config.Config {
	return &config.Config{Public: config.Public{OlderPageSize: 5, RecentWindow: 12}}
}

func setupMessageTestHandler(chat *MockChatService, source *MockFeedReader) *chi.Mux {
	if chat == nil {
		chat = &MockChatService{}
	}
	if source == nil {
		source = &MockFeedReader{}
	}
	h := &Handler{chat: chat, source: source, cfg: testConfig()}

	router := chi.NewRouter()
	router.Post("/v1/messages", h.CreateMessage)
	router.Post("/v1/messages/image", h.CreateImageMessage)
	router.Get("/v1/messages", h.GetMessages)
	router.Get("/v1/messages/favorites", h.GetFavorites)
	router.Post("/v1/messages/{id}/favorite", h.ToggleFavorite)
	router.Delete("/v1/messages/{id}", h.DeleteMessage)
	router.Delete("/v1/messages", h.DeleteMessages)
	return router
}

func withUser(req *http.Request) *http.Request {
	user := &domain.User{Id: "uid-1", Name: "alice", AvatarURL: "/media/avatars/alice.png"}
	ctx := context.WithValue(req.Context(), middleware.UserClaimsKey, user)
	return req.WithContext(ctx)
}

func TestCreateMessageHandler(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		mockChat := &MockChatService{
			MockPost: func(ctx context.Context, author domain.Author, avatar domain.AvatarURL, text domain.MsgText) (domain.MsgId, error) {
				assert.Equal(t, "alice", author)
				assert.Equal(t, "/media/avatars/alice.png", avatar)
				assert.Equal(t, "hi there", text)
				return "m1", nil
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(`{"text": "hi there"}`)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp createMessageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "m1", resp.Id)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		router := setupMessageTestHandler(nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(`{"text": "hi"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid request body json", func(t *testing.T) {
		router := setupMessageTestHandler(nil, nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(`{invalid json::}`)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("service error propagates", func(t *testing.T) {
		mockChat := &MockChatService{
			MockPost: func(context.Context, domain.Author, domain.AvatarURL, domain.MsgText) (domain.MsgId, error) {
				return "", &internal_errors.ErrorWithStatusCode{Message: "Message is too long", StatusCode: http.StatusBadRequest}
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(`{"text": "hi"}`)))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Message is too long")
	})
}

func multipartImage(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)

	body := &bytes.Buffer{}
	mp := multipart.NewWriter(body)
	part, err := mp.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, mp.Close())
	return body, mp.FormDataContentType()
}

func TestCreateImageMessageHandler(t *testing.T) {
	t.Run("successful upload", func(t *testing.T) {
		mockChat := &MockChatService{
			MockPostImage: func(ctx context.Context, author domain.Author, avatar domain.AvatarURL, data io.Reader) (domain.MsgId, error) {
				payload, err := io.ReadAll(data)
				require.NoError(t, err)
				assert.NotEmpty(t, payload)
				return "m-img", nil
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		body, contentType := multipartImage(t)
		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages/image", body))
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), "m-img")
	})

	t.Run("missing file field", func(t *testing.T) {
		router := setupMessageTestHandler(nil, nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages/image", bytes.NewBufferString("not multipart")))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejected media propagates 415", func(t *testing.T) {
		mockChat := &MockChatService{
			MockPostImage: func(context.Context, domain.Author, domain.AvatarURL, io.Reader) (domain.MsgId, error) {
				return "", &internal_errors.ErrorWithStatusCode{Message: "Unsupported media type", StatusCode: http.StatusUnsupportedMediaType}
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		body, contentType := multipartImage(t)
		req := withUser(httptest.NewRequest(http.MethodPost, "/v1/messages/image", body))
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	})
}

func TestGetMessagesHandler(t *testing.T) {
	page := []domain.Message{
		{Id: "m2", Author: "alice", Body: domain.TextBody("newer")},
		{Id: "m1", Author: "bob", Body: domain.TextBody("older")},
	}

	t.Run("first page uses default limit", func(t *testing.T) {
		mockSource := &MockFeedReader{
			MockFetchPage: func(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error) {
				assert.Nil(t, cursor)
				assert.Equal(t, 5, limit)
				return page, nil
			},
		}
		router := setupMessageTestHandler(nil, mockSource)

		req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp pageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 2)
		assert.Equal(t, "m2", resp.Messages[0].Id)
		assert.Equal(t, "newer", resp.Messages[0].Text)
	})

	t.Run("before cursor resolves the anchor message", func(t *testing.T) {
		anchor := domain.Message{Id: "m5", Author: "alice", Body: domain.TextBody("anchor")}
		mockSource := &MockFeedReader{
			MockGetMessage: func(ctx context.Context, id domain.MsgId) (*domain.Message, error) {
				assert.Equal(t, "m5", id)
				return &anchor, nil
			},
			MockFetchPage: func(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error) {
				require.NotNil(t, cursor)
				assert.Equal(t, "m5", cursor.Id)
				assert.Equal(t, 2, limit)
				return page, nil
			},
		}
		router := setupMessageTestHandler(nil, mockSource)

		req := httptest.NewRequest(http.MethodGet, "/v1/messages?before=m5&limit=2", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown cursor is 404", func(t *testing.T) {
		router := setupMessageTestHandler(nil, &MockFeedReader{})

		req := httptest.NewRequest(http.MethodGet, "/v1/messages?before=nope", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid limit is 400", func(t *testing.T) {
		router := setupMessageTestHandler(nil, &MockFeedReader{})

		req := httptest.NewRequest(http.MethodGet, "/v1/messages?limit=0", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetFavoritesHandler(t *testing.T) {
	t.Run("no favorites is 412", func(t *testing.T) {
		router := setupMessageTestHandler(nil, &MockFeedReader{})

		req := httptest.NewRequest(http.MethodGet, "/v1/messages/favorites", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
		assert.Contains(t, rr.Body.String(), "no favorite messages")
	})

	t.Run("returns the favorited set", func(t *testing.T) {
		mockSource := &MockFeedReader{
			MockHasFavorites: func(context.Context) (bool, error) { return true, nil },
			MockFetchFavorites: func(context.Context) ([]domain.Message, error) {
				return []domain.Message{{Id: "f1", Author: "alice", Body: domain.TextBody("starred"), Favorite: true}}, nil
			},
		}
		router := setupMessageTestHandler(nil, mockSource)

		req := httptest.NewRequest(http.MethodGet, "/v1/messages/favorites", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp pageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 1)
		assert.True(t, resp.Messages[0].Favorite)
	})
}

func TestToggleFavoriteHandler(t *testing.T) {
	mockChat := &MockChatService{
		MockToggleFavorite: func(ctx context.Context, id domain.MsgId) (bool, error) {
			assert.Equal(t, "m1", id)
			return true, nil
		},
	}
	router := setupMessageTestHandler(mockChat, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/m1/favorite", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp toggleFavoriteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Favorite)
}

func TestDeleteMessageHandler(t *testing.T) {
	t.Run("deletes by id", func(t *testing.T) {
		var deleted domain.MsgId
		mockChat := &MockChatService{
			MockDelete: func(ctx context.Context, id domain.MsgId) error {
				deleted = id
				return nil
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := httptest.NewRequest(http.MethodDelete, "/v1/messages/m7", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "m7", deleted)
	})

	t.Run("missing message is 404", func(t *testing.T) {
		mockChat := &MockChatService{
			MockDelete: func(context.Context, domain.MsgId) error {
				return &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: http.StatusNotFound}
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := httptest.NewRequest(http.MethodDelete, "/v1/messages/ghost", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteMessagesHandler(t *testing.T) {
	t.Run("requires keep=favorites", func(t *testing.T) {
		router := setupMessageTestHandler(nil, nil)

		req := httptest.NewRequest(http.MethodDelete, "/v1/messages", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("forwards the confirmation answer", func(t *testing.T) {
		var confirmAnswer bool
		mockChat := &MockChatService{
			MockDeleteAll: func(ctx context.Context, confirm func() bool) error {
				confirmAnswer = confirm()
				return nil
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := httptest.NewRequest(http.MethodDelete, "/v1/messages?keep=favorites&confirm=true", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, confirmAnswer)
	})

	t.Run("cancelled wipe is 412", func(t *testing.T) {
		mockChat := &MockChatService{
			MockDeleteAll: func(ctx context.Context, confirm func() bool) error {
				if !confirm() {
					return &internal_errors.ErrorWithStatusCode{Message: "Deletion cancelled", StatusCode: http.StatusPreconditionFailed}
				}
				return nil
			},
		}
		router := setupMessageTestHandler(mockChat, nil)

		req := httptest.NewRequest(http.MethodDelete, "/v1/messages?keep=favorites", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
		assert.Contains(t, rr.Body.String(), "Deletion cancelled")
	})
}

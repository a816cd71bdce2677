package service

import (
	"context"
	"io"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
)

var ErrDeletionCancelled = &internal_errors.ErrorWithStatusCode{Message: "Deletion cancelled", StatusCode: 412}

type ChatService interface {
	Post(ctx context.Context, author domain.Author, avatar domain.AvatarURL, text domain.MsgText) (domain.MsgId, error)
	PostImage(ctx context.Context, author domain.Author, avatar domain.AvatarURL, data io.Reader) (domain.MsgId, error)
	ToggleFavorite(ctx context.Context, id domain.MsgId) (bool, error)
	Delete(ctx context.Context, id domain.MsgId) error
	DeleteAllExceptFavorites(ctx context.Context, confirm func() bool) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, author domain.Author, avatar domain.AvatarURL, body domain.Body) (domain.MsgId, error)
	GetMessage(ctx context.Context, id domain.MsgId) (*domain.Message, error)
	UpdateMessage(ctx context.Context, id domain.MsgId, patch domain.MessagePatch) error
	DeleteMessage(ctx context.Context, id domain.MsgId) error
	DeleteAllExceptFavorites(ctx context.Context) ([]domain.ImageRef, error)
	HasFavorites(ctx context.Context) (bool, error)
}

type BlobStore interface {
	Save(fileData io.Reader, messageID, originalExtension string) (string, error)
	Delete(filePath string) error
}

type Notifier interface {
	NotifyNewMessage(ctx context.Context, msg domain.Message)
}

type TextValidator interface {
	Text(text domain.MsgText) error
}

type Chat struct {
	store     MessageStore
	blobs     BlobStore
	notifier  Notifier
	validator TextValidator
	mediaURL  string // public prefix for stored images
}

func NewChat(store MessageStore, blobs BlobStore, notifier Notifier, validator TextValidator, mediaURL string) ChatService {
	return &Chat{store, blobs, notifier, validator, mediaURL}
}

func (c *Chat) Post(ctx context.Context, author domain.Author, avatar domain.AvatarURL, text domain.MsgText) (domain.MsgId, error) {
	if err := c.validator.Text(text); err != nil {
		return "", err
	}

	id, err := c.store.CreateMessage(ctx, author, avatar, domain.TextBody(text))
	if err != nil {
		return "", err
	}

	c.notify(ctx, id)
	return id, nil
}

// PostImage mirrors the optimistic two-phase upload of the web client:
// create a record with an empty body, upload the blob, then patch the
// record with the public url.
func (c *Chat) PostImage(ctx context.Context, author domain.Author, avatar domain.AvatarURL, data io.Reader) (domain.MsgId, error) {
	ext, buffered, err := SniffImage(data)
	if err != nil {
		return "", err
	}

	id, err := c.store.CreateMessage(ctx, author, avatar, domain.Body{})
	if err != nil {
		return "", err
	}

	path, err := c.blobs.Save(buffered, id, ext)
	if err != nil {
		// roll the placeholder record back, best effort
		if delErr := c.store.DeleteMessage(ctx, id); delErr != nil {
			logger.Log.Error("failed to remove placeholder message", "id", id, "err", delErr)
		}
		return "", err
	}

	body := domain.ImageBody(c.mediaURL + path)
	if err := c.store.UpdateMessage(ctx, id, domain.MessagePatch{Body: &body}); err != nil {
		return "", err
	}

	c.notify(ctx, id)
	return id, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
// Rendering catches up through the live delta, not here.
func (c *Chat) ToggleFavorite(ctx context.Context, id domain.MsgId) (bool, error) {
	msg, err := c.store.GetMessage(ctx, id)
	if err != nil {
		return false, err
	}
	favorite := !msg.Favorite
	if err := c.store.UpdateMessage(ctx, id, domain.MessagePatch{Favorite: &favorite}); err != nil {
		return false, err
	}
	return favorite, nil
}

// Delete removes the record; an associated image is deleted from blob
// storage best effort, the record deletion proceeds regardless.
func (c *Chat) Delete(ctx context.Context, id domain.MsgId) error {
	msg, err := c.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	if err := c.store.DeleteMessage(ctx, id); err != nil {
		return err
	}

	if msg.Body.Kind == domain.BodyImage {
		c.deleteBlob(msg.Body.ImageURL)
	}
	return nil
}

// DeleteAllExceptFavorites wipes every non-favorited record. When
// nothing is favorited the operation would delete everything, so it
// asks the confirmation collaborator first.
func (c *Chat) DeleteAllExceptFavorites(ctx context.Context, confirm func() bool) error {
	hasFavorites, err := c.store.HasFavorites(ctx)
	if err != nil {
		return err
	}
	if !hasFavorites {
		if confirm == nil || !confirm() {
			return ErrDeletionCancelled
		}
	}

	refs, err := c.store.DeleteAllExceptFavorites(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		c.deleteBlob(ref)
	}
	return nil
}

func (c *Chat) deleteBlob(ref domain.ImageRef) {
	path := ref
	if len(c.mediaURL) > 0 && len(ref) > len(c.mediaURL) && ref[:len(c.mediaURL)] == c.mediaURL {
		path = ref[len(c.mediaURL):]
	}
	if err := c.blobs.Delete(path); err != nil {
		logger.Log.Warn("failed to delete image blob", "ref", ref, "err", err)
	}
}

func (c *Chat) notify(ctx context.Context, id domain.MsgId) {
	if c.notifier == nil {
		return
	}
	msg, err := c.store.GetMessage(ctx, id)
	if err != nil {
		logger.Log.Warn("cannot load message for notification", "id", id, "err", err)
		return
	}
	c.notifier.NotifyNewMessage(ctx, *msg)
}

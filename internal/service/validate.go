package service

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
)

var errMediaRejected = &internal_errors.ErrorWithStatusCode{Message: "You can only share images", StatusCode: 415}

// MessageValidator enforces the text rules of the feed.
type MessageValidator struct {
	MaxLen int
}

func (v *MessageValidator) Text(text domain.MsgText) error {
	if strings.TrimSpace(text) == "" {
		return &internal_errors.ErrorWithStatusCode{Message: "Message text is empty", StatusCode: 400}
	}
	if v.MaxLen > 0 && len(text) > v.MaxLen {
		return &internal_errors.ErrorWithStatusCode{Message: "Message text too long", StatusCode: 400}
	}
	return nil
}

// SniffImage verifies that data really is an image by decoding its
// header, and returns the canonical extension plus a reader replaying
// the full payload. The sniffed format wins over whatever the upload
// name claims; non-image payloads are rejected before anything is
// stored.
func SniffImage(data io.Reader) (string, io.Reader, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return "", nil, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "", nil, errMediaRejected
	}

	ext, ok := map[string]string{
		"png":  ".png",
		"jpeg": ".jpg",
		"gif":  ".gif",
		"webp": ".webp",
	}[format]
	if !ok {
		return "", nil, errMediaRejected
	}

	return ext, bytes.NewReader(payload), nil
}

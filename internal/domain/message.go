package domain

import (
	"time"
)

// BodyKind discriminates the message payload variant.
type BodyKind int

const (
	BodyNone  BodyKind = iota // transient: record created, upload not finished
	BodyText                  // plain/markdown text
	BodyImage                 // reference to an uploaded image
)

// Body is the message payload: text xor image. BodyNone is only valid
// for a just-created record whose image upload has not completed yet.
type Body struct {
	Kind     BodyKind
	Text     MsgText
	ImageURL ImageRef
}

func TextBody(text MsgText) Body {
	return Body{Kind: BodyText, Text: text}
}

func ImageBody(url ImageRef) Body {
	return Body{Kind: BodyImage, ImageURL: url}
}

type Message struct {
	Id        MsgId
	Author    Author
	AvatarURL AvatarURL
	Body      Body
	CreatedAt time.Time // server-assigned, UTC; zero until the source confirms
	Favorite  bool
}

// Millis returns the creation timestamp at millisecond precision,
// the granularity feed ordering is defined on.
func (m *Message) Millis() int64 {
	return m.CreatedAt.UnixMilli()
}

// HasTimestamp reports whether the source has assigned a creation time yet.
func (m *Message) HasTimestamp() bool {
	return !m.CreatedAt.IsZero()
}

type DeltaKind int

const (
	DeltaAdded DeltaKind = iota
	DeltaModified
	DeltaRemoved
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaAdded:
		return "added"
	case DeltaModified:
		return "modified"
	case DeltaRemoved:
		return "removed"
	}
	return "unknown"
}

// Delta is one change notification from the live subscription.
// For DeltaRemoved only Message.Id is meaningful.
type Delta struct {
	Kind    DeltaKind
	Message Message
}

// MessagePatch is a partial update; nil fields are left untouched.
type MessagePatch struct {
	Body     *Body
	Favorite *bool
}

type User struct {
	Id        UserId
	Name      string
	AvatarURL AvatarURL
	Admin     bool
}

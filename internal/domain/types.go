package domain

type (
	MsgId      = string // uuid assigned by the feed source
	UserId     = string
	Author     = string
	AvatarURL  = string
	MsgText    = string
	ImageRef   = string // public path of an uploaded image
	PushTokens = []string
)

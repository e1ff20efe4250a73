package types

import (
	"time"
)

type UserStatus string

const (
	StatusAvailable UserStatus = "available"
	StatusBusy      UserStatus = "busy"
	StatusAway      UserStatus = "away"
	StatusOffline   UserStatus = "offline"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusAway, StatusOffline:
		return true
	}
	return false
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// GroupReceiver is the receiver marker used for messages addressed to a
// whole room rather than a single user.
const GroupReceiver = "all"

type User struct {
	Id        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  time.Time  `json:"last_seen"`
	Status    UserStatus `json:"status"`
	Avatar    string     `json:"avatar"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

type Attachment struct {
	Url      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Sender is the sender of a message resolved to its current profile.
type Sender struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type Message struct {
	Id          string      `json:"id"`
	Sender      Sender      `json:"sender"`
	SenderName  string      `json:"sender_name"`
	ReceiverId  string      `json:"receiver_id"`
	Body        string      `json:"message"`
	RoomId      string      `json:"room_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Read        bool        `json:"read"`
	MessageType MessageType `json:"message_type"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

package database

import "time"

type User struct {
	Id           string
	Username     string
	Email        string
	IsOnline     bool
	LastSeen     time.Time
	Status       string
	Avatar       string
	SessionToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Attachment struct {
	Url      string
	Filename string
	Size     int64
	MimeType string
}

type Message struct {
	Id         string
	SenderId   string
	SenderName string
	// SenderUsername and SenderAvatar are resolved from the users table
	// when the message is read back and are empty for dangling senders.
	SenderUsername string
	SenderAvatar   string
	ReceiverId     string
	Body           string
	RoomId         string
	Timestamp      time.Time
	Read           bool
	MessageType    string
	Attachment     *Attachment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateUserParams struct {
	Id       string
	Username string
	Email    string
	Status   string
}

type UpsertOnlineUserParams struct {
	Id           string
	Username     string
	SessionToken string
	SeenAt       time.Time
}

type UpdateUserStatusParams struct {
	Id string
	// Status is left unchanged when empty.
	Status string
	// IsOnline is left unchanged when nil.
	IsOnline *bool
	SeenAt   time.Time
}

type ListUsersParams struct {
	Search string
	// Limit of zero lists every matching user.
	Limit  int
	Offset int
}

type CreateMessageParams struct {
	SenderId    string
	SenderName  string
	ReceiverId  string
	Body        string
	RoomId      string
	MessageType string
	Attachment  *Attachment
	Timestamp   time.Time
}

type MarkReadParams struct {
	MessageIds []string
	ReaderId   string
	// RoomId restricts the update to a single room when set.
	RoomId string
}

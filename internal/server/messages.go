package server

import (
	"encoding/json"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/types"
)

// inbound events
const (
	EventUserJoin         = "user_join"
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
	EventMessageRead      = "message_read"
	EventCreateRoom       = "create_room"
	EventUserStatusChange = "user_status_change"
)

// outbound events
const (
	EventGetOnlineUsers    = "get_online_users"
	EventLoadMessages      = "load_messages"
	EventReceiveMessage    = "receive_message"
	EventMessageDelivered  = "message_delivered"
	EventRoomCreated       = "room_created"
	EventUserStatusUpdated = "user_status_updated"
	EventError             = "error"
)

type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type UserJoin struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type JoinRoom struct {
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
}

type LeaveRoom struct {
	RoomId string `json:"roomId"`
}

type SendMessage struct {
	SenderId    string            `json:"senderId"`
	ReceiverId  string            `json:"receiverId"`
	Message     string            `json:"message"`
	RoomId      string            `json:"roomId"`
	SenderName  string            `json:"senderName"`
	MessageType types.MessageType `json:"messageType"`
	Attachment  *types.Attachment `json:"attachment,omitempty"`
}

// Typing is used for both user_typing and user_stop_typing.
type Typing struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type MessageRead struct {
	MessageIds []string `json:"messageIds"`
	RoomId     string   `json:"roomId"`
	ReaderId   string   `json:"readerId"`
}

type CreateRoom struct {
	RoomId    string `json:"roomId"`
	RoomName  string `json:"roomName"`
	CreatedBy string `json:"createdBy"`
}

type StatusChange struct {
	UserId string           `json:"userId"`
	Status types.UserStatus `json:"status"`
}

type MessageDelivered struct {
	MessageId string    `json:"messageId"`
	RoomId    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomCreated struct {
	RoomId    string    `json:"roomId"`
	RoomName  string    `json:"roomName"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type StatusUpdated struct {
	UserId   string           `json:"userId"`
	Status   types.UserStatus `json:"status"`
	Username string           `json:"username"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newServerMessage(event string, data any) *ServerMessage {
	return &ServerMessage{
		Event: event,
		Data:  data,
	}
}

func ErrorMessage(msg string) *ServerMessage {
	return newServerMessage(EventError, ErrorPayload{Message: msg})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

package database

import "context"

type ChatRepository interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	UpsertOnlineUser(ctx context.Context, params UpsertOnlineUserParams) (User, error)
	SetUserOffline(ctx context.Context, userId string) error
	UpdateUserStatus(ctx context.Context, params UpdateUserStatusParams) (User, error)
	GetUserById(ctx context.Context, userId string) (User, error)
	ListUsers(ctx context.Context, params ListUsersParams) ([]User, error)
	CountUsers(ctx context.Context, search string) (int, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (string, error)
	GetMessageById(ctx context.Context, messageId string) (Message, error)
	GetRoomMessages(ctx context.Context, roomId string, limit, offset int) ([]Message, error)
	CountRoomMessages(ctx context.Context, roomId string) (int, error)
	CountUnreadMessages(ctx context.Context, userId string) (int, error)
	MarkMessagesRead(ctx context.Context, params MarkReadParams) ([]string, error)
	DeleteMessage(ctx context.Context, messageId string) error
	SearchMessages(ctx context.Context, roomId, query string, limit int) ([]Message, error)
}

package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpsertOnlineUser(ctx context.Context, params UpsertOnlineUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) SetUserOffline(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
func (m *MockChatRepository) UpdateUserStatus(ctx context.Context, params UpdateUserStatusParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) ListUsers(ctx context.Context, params ListUsersParams) ([]User, error) {
	args := m.Called(ctx, params)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) CountUsers(ctx context.Context, search string) (int, error) {
	args := m.Called(ctx, search)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}
func (m *MockChatRepository) GetMessageById(ctx context.Context, messageId string) (Message, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetRoomMessages(ctx context.Context, roomId string, limit, offset int) ([]Message, error) {
	args := m.Called(ctx, roomId, limit, offset)
	if messages, ok := args.Get(0).([]Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) CountRoomMessages(ctx context.Context, roomId string) (int, error) {
	args := m.Called(ctx, roomId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) CountUnreadMessages(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) MarkMessagesRead(ctx context.Context, params MarkReadParams) ([]string, error) {
	args := m.Called(ctx, params)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) DeleteMessage(ctx context.Context, messageId string) error {
	args := m.Called(ctx, messageId)
	return args.Error(0)
}
func (m *MockChatRepository) SearchMessages(ctx context.Context, roomId, query string, limit int) ([]Message, error) {
	args := m.Called(ctx, roomId, query, limit)
	if messages, ok := args.Get(0).([]Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}

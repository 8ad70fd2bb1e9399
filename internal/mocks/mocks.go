package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/api"
	"chat-sync/internal/engine"
	"chat-sync/internal/models"
	"chat-sync/internal/ws"
)

var _ api.ChatAPI = (*ChatAPIMock)(nil)

type ChatAPIMock struct {
	mock.Mock
}

func chatResult(args mock.Arguments) (models.Chat, error) {
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatAPIMock) ListChats(ctx context.Context) ([]models.Chat, error) {
	args := m.Called(ctx)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatAPIMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID))
}

func (m *ChatAPIMock) GetDialog(ctx context.Context, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, userID))
}

func (m *ChatAPIMock) CreateChat(ctx context.Context, input api.ChatInput, picture *api.Picture) (models.Chat, error) {
	return chatResult(m.Called(ctx, input, picture))
}

func (m *ChatAPIMock) UpdateChat(ctx context.Context, chatID int, input api.ChatInput, picture *api.Picture) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, input, picture))
}

func (m *ChatAPIMock) DeleteChat(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatAPIMock) LeaveChat(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatAPIMock) AddParticipants(ctx context.Context, chatID int, userIDs []int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userIDs))
}

func (m *ChatAPIMock) RemoveParticipant(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *ChatAPIMock) AssignAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *ChatAPIMock) RemoveAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *ChatAPIMock) ListMessages(ctx context.Context, chatID, page, pageSize int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, page, pageSize)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type FrameSenderMock struct {
	mock.Mock
}

func (m *FrameSenderMock) Send(ctx context.Context, scope ws.Scope, frame string) error {
	args := m.Called(ctx, scope, frame)
	return args.Error(0)
}

type ProjectionMock struct {
	mock.Mock
}

func (m *ProjectionMock) ConfirmChat(ctx context.Context, chat models.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *ProjectionMock) ConfirmChatDeleted(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ProjectionMock) ConfirmLeft(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ProjectionMock) OpenChatState() engine.ChatState {
	args := m.Called()
	if val := args.Get(0); val != nil {
		return val.(engine.ChatState)
	}
	return engine.ChatState{}
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
)

// SessionMock stands in for the session lifecycle behind the control API.
type SessionMock struct {
	mock.Mock
}

func (m *SessionMock) OpenChat(ctx context.Context, chatID int) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *SessionMock) CloseChat(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SessionMock) LoadMore(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SessionMock) ReloadChat(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SessionMock) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SessionMock) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *SessionMock) OpenChatID() int {
	return m.Called().Int(0)
}

func (m *SessionMock) StreamStates() map[string]string {
	args := m.Called()
	if val := args.Get(0); val != nil {
		return val.(map[string]string)
	}
	return nil
}

// CommandsMock stands in for the command dispatcher.
type CommandsMock struct {
	mock.Mock
}

func (m *CommandsMock) SendMessage(ctx context.Context, chatID int, text string, pictures []string) error {
	return m.Called(ctx, chatID, text, pictures).Error(0)
}

func (m *CommandsMock) EditMessage(ctx context.Context, chatID, messageID int, text string) error {
	return m.Called(ctx, chatID, messageID, text).Error(0)
}

func (m *CommandsMock) DeleteMessage(ctx context.Context, chatID, messageID int) error {
	return m.Called(ctx, chatID, messageID).Error(0)
}

func (m *CommandsMock) ReadMessage(ctx context.Context, chatID, messageID int) {
	m.Called(ctx, chatID, messageID)
}

func (m *CommandsMock) CreateChat(ctx context.Context, input api.ChatInput, picture *api.Picture) (models.Chat, error) {
	return chatResult(m.Called(ctx, input, picture))
}

func (m *CommandsMock) EditChat(ctx context.Context, chatID int, input api.ChatInput, picture *api.Picture) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, input, picture))
}

func (m *CommandsMock) DeleteChat(ctx context.Context, chatID int) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *CommandsMock) LeaveChat(ctx context.Context, chatID int) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *CommandsMock) AddParticipants(ctx context.Context, chatID int, userIDs []int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userIDs))
}

func (m *CommandsMock) RemoveParticipant(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *CommandsMock) AssignAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *CommandsMock) RemoveAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, chatID, userID))
}

func (m *CommandsMock) GetDialog(ctx context.Context, userID int) (models.Chat, error) {
	return chatResult(m.Called(ctx, userID))
}

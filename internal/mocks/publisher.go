package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/telemetry"
)

// PublisherMock stands in for the AMQP publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NotifierMock records mirrored notifications.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Emit(ctx context.Context, localUserID int, payload telemetry.NotificationPayload) {
	m.Called(ctx, localUserID, payload)
}

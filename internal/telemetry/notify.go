package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NotificationEmitter mirrors engine notifications to a message broker so that
// processes other than the local UI can react to them.
type NotificationEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.Logger
}

type NotificationEnvelope struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	OccurredAt    string              `json:"occurred_at"`
	Service       string              `json:"service"`
	Environment   string              `json:"environment"`
	UserID        int                 `json:"user_id"`
	Payload       NotificationPayload `json:"payload"`
}

type NotificationPayload struct {
	Kind      string `json:"kind"`
	ChatID    int    `json:"chat_id"`
	MessageID int    `json:"message_id,omitempty"`
	UserID    int    `json:"user_id,omitempty"`
}

func NewNotificationEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.Logger) *NotificationEmitter {
	return &NotificationEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes one notification. Failures are logged and otherwise ignored.
func (e *NotificationEmitter) Emit(ctx context.Context, localUserID int, payload NotificationPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := NotificationEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_notification",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        localUserID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey+"."+payload.Kind, envelope); err != nil {
		e.logger.Warn("notification publish failed", zap.String("kind", payload.Kind), zap.Error(err))
	}
}

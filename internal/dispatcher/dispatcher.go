// Package dispatcher turns user commands into socket frames or REST calls and
// feeds REST confirmations back into the engine.
package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-sync/internal/api"
	"chat-sync/internal/engine"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/protocol"
	"chat-sync/internal/validation"
	"chat-sync/internal/ws"
)

// FrameSender writes one frame on a scope. ws.Manager satisfies it.
type FrameSender interface {
	Send(ctx context.Context, scope ws.Scope, frame string) error
}

// Projection receives REST confirmations. engine.Engine satisfies it.
type Projection interface {
	ConfirmChat(ctx context.Context, chat models.Chat) error
	ConfirmChatDeleted(ctx context.Context, chatID int) error
	ConfirmLeft(ctx context.Context, chatID int) error
	OpenChatState() engine.ChatState
}

type Dispatcher struct {
	frames FrameSender
	api    api.ChatAPI
	proj   Projection
	limits validation.Limits
	self   int
	logger *zap.Logger
	tracer trace.Tracer
}

func New(frames FrameSender, chatAPI api.ChatAPI, proj Projection, limits validation.Limits, self int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		frames: frames,
		api:    chatAPI,
		proj:   proj,
		limits: limits,
		self:   self,
		logger: logger,
		tracer: otel.Tracer("chat-sync/dispatcher"),
	}
}

func (d *Dispatcher) start(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "dispatcher."+command, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, command string, err error) {
	observability.IncCommand(command, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (d *Dispatcher) sendFrame(ctx context.Context, chatID int, cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	if err := d.frames.Send(ctx, ws.ChatScope(chatID), frame); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %w", api.ErrNoConnection, err)
	}
	return nil
}

// SendMessage posts a message. The message appears once the server echoes it.
func (d *Dispatcher) SendMessage(ctx context.Context, chatID int, text string, pictures []string) (err error) {
	ctx, span := d.start(ctx, "send_message", attribute.Int("chat.id", chatID))
	defer func() { finish(span, "send_message", err) }()

	if err := d.limits.Message(text, len(pictures)); err != nil {
		return err
	}
	return d.sendFrame(ctx, chatID, protocol.SendMessage{ChatID: chatID, Text: text, Pictures: pictures})
}

func (d *Dispatcher) EditMessage(ctx context.Context, chatID, messageID int, text string) (err error) {
	ctx, span := d.start(ctx, "edit_message", attribute.Int("chat.id", chatID), attribute.Int("message.id", messageID))
	defer func() { finish(span, "edit_message", err) }()

	if err := d.limits.Message(text, 0); err != nil {
		return err
	}
	return d.sendFrame(ctx, chatID, protocol.EditMessage{MessageID: messageID, Text: text})
}

func (d *Dispatcher) DeleteMessage(ctx context.Context, chatID, messageID int) (err error) {
	ctx, span := d.start(ctx, "delete_message", attribute.Int("chat.id", chatID), attribute.Int("message.id", messageID))
	defer func() { finish(span, "delete_message", err) }()

	return d.sendFrame(ctx, chatID, protocol.DeleteMessage{MessageID: messageID})
}

// ReadMessage marks a message read. Failures are logged and never returned.
func (d *Dispatcher) ReadMessage(ctx context.Context, chatID, messageID int) {
	ctx, span := d.start(ctx, "read_message", attribute.Int("chat.id", chatID), attribute.Int("message.id", messageID))
	err := d.sendFrame(ctx, chatID, protocol.ReadMessage{MessageID: messageID})
	finish(span, "read_message", err)
	if err != nil {
		d.logger.Debug("read receipt not sent", zap.Int("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (d *Dispatcher) CreateChat(ctx context.Context, input api.ChatInput, picture *api.Picture) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "create_chat", attribute.String("chat.type", string(input.Type)))
	defer func() { finish(span, "create_chat", err) }()

	if input.Type != models.ChatTypeDialog {
		if err := d.limits.Name(input.Name); err != nil {
			return models.Chat{}, err
		}
	}
	chat, err = d.api.CreateChat(ctx, input, picture)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

func (d *Dispatcher) EditChat(ctx context.Context, chatID int, input api.ChatInput, picture *api.Picture) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "edit_chat", attribute.Int("chat.id", chatID))
	defer func() { finish(span, "edit_chat", err) }()

	if err := d.limits.Name(input.Name); err != nil {
		return models.Chat{}, err
	}
	chat, err = d.api.UpdateChat(ctx, chatID, input, picture)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

func (d *Dispatcher) DeleteChat(ctx context.Context, chatID int) (err error) {
	ctx, span := d.start(ctx, "delete_chat", attribute.Int("chat.id", chatID))
	defer func() { finish(span, "delete_chat", err) }()

	if err := d.api.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	return d.proj.ConfirmChatDeleted(ctx, chatID)
}

func (d *Dispatcher) LeaveChat(ctx context.Context, chatID int) (err error) {
	ctx, span := d.start(ctx, "leave_chat", attribute.Int("chat.id", chatID))
	defer func() { finish(span, "leave_chat", err) }()

	if err := d.api.LeaveChat(ctx, chatID); err != nil {
		return err
	}
	return d.proj.ConfirmLeft(ctx, chatID)
}

func (d *Dispatcher) AddParticipants(ctx context.Context, chatID int, userIDs []int) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "add_participants", attribute.Int("chat.id", chatID), attribute.IntSlice("user.ids", userIDs))
	defer func() { finish(span, "add_participants", err) }()

	chat, err = d.api.AddParticipants(ctx, chatID, userIDs)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

func (d *Dispatcher) RemoveParticipant(ctx context.Context, chatID, userID int) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "remove_participant", attribute.Int("chat.id", chatID), attribute.Int("user.id", userID))
	defer func() { finish(span, "remove_participant", err) }()

	if err := d.requireRole(chatID, models.Role.CanKick); err != nil {
		return models.Chat{}, err
	}
	chat, err = d.api.RemoveParticipant(ctx, chatID, userID)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

func (d *Dispatcher) AssignAdmin(ctx context.Context, chatID, userID int) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "assign_admin", attribute.Int("chat.id", chatID), attribute.Int("user.id", userID))
	defer func() { finish(span, "assign_admin", err) }()

	if err := d.requireRole(chatID, models.Role.CanManageAdmins); err != nil {
		return models.Chat{}, err
	}
	chat, err = d.api.AssignAdmin(ctx, chatID, userID)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

func (d *Dispatcher) RemoveAdmin(ctx context.Context, chatID, userID int) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "remove_admin", attribute.Int("chat.id", chatID), attribute.Int("user.id", userID))
	defer func() { finish(span, "remove_admin", err) }()

	if err := d.requireRole(chatID, models.Role.CanManageAdmins); err != nil {
		return models.Chat{}, err
	}
	chat, err = d.api.RemoveAdmin(ctx, chatID, userID)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

// GetDialog fetches (or lets the server create) the dialog with userID.
func (d *Dispatcher) GetDialog(ctx context.Context, userID int) (chat models.Chat, err error) {
	ctx, span := d.start(ctx, "get_dialog", attribute.Int("user.id", userID))
	defer func() { finish(span, "get_dialog", err) }()

	chat, err = d.api.GetDialog(ctx, userID)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, d.proj.ConfirmChat(ctx, chat)
}

// requireRole checks the local user's role when chatID is the open chat and
// its participants are known. Otherwise the server decides.
func (d *Dispatcher) requireRole(chatID int, allowed func(models.Role) bool) error {
	state := d.proj.OpenChatState()
	if state.ChatID != chatID || state.Chat == nil {
		return nil
	}
	me, ok := state.Chat.Participant(d.self)
	if !ok || !allowed(me.Role) {
		return api.ErrPermissionDenied
	}
	return nil
}

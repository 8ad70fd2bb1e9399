package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-sync/internal/engine"
	"chat-sync/internal/observability"
)

// eventsBuffer bounds how far one SSE client may fall behind before its
// notifications are dropped.
const eventsBuffer = 64

// EventsHandler streams notifications and reports session health.
type EventsHandler struct {
	session    Session
	projection Projection
	logger     *zap.Logger
}

func NewEventsHandler(session Session, projection Projection, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{session: session, projection: projection, logger: logger}
}

// Events handles GET /events as a server-sent event stream. Each engine
// notification becomes one event named after its kind. A slow client loses
// notifications instead of stalling the engine.
func (h *EventsHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	notes := relay(ctx, h.projection.SubscribeNotifications(ctx), eventsBuffer, func(note engine.Notification) {
		observability.IncNotificationDropped("sse")
		h.logger.Debug("sse notification dropped", zap.String("kind", string(note.Kind)), zap.Int("chat_id", note.ChatID))
	})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-notes:
			if !ok {
				return
			}
			c.SSEvent(string(note.Kind), note)
			c.Writer.Flush()
		}
	}
}

// relay drains in without ever blocking on the reader of the returned
// channel. Notes that do not fit in size are handed to drop.
func relay(ctx context.Context, in <-chan engine.Notification, size int, drop func(engine.Notification)) <-chan engine.Notification {
	out := make(chan engine.Notification, size)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- note:
				default:
					drop(note)
				}
			}
		}
	}()
	return out
}

// Health handles GET /healthz.
func (h *EventsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"streams":      h.session.StreamStates(),
		"open_chat_id": h.session.OpenChatID(),
	})
}

// Logout handles POST /logout. The process keeps serving but every guarded
// route answers 401 afterwards.
func (h *EventsHandler) Logout(c *gin.Context) {
	if err := h.session.Logout(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Package handlers exposes the session to a local UI process over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-sync/internal/api"
	"chat-sync/internal/engine"
	"chat-sync/internal/models"
	"chat-sync/internal/session"
	"chat-sync/internal/validation"
)

// Session is the part of *session.Session the control API drives.
type Session interface {
	OpenChat(ctx context.Context, chatID int) error
	CloseChat(ctx context.Context) error
	LoadMore(ctx context.Context) error
	ReloadChat(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	OpenChatID() int
	StreamStates() map[string]string
}

// Projection is read access to the engine.
type Projection interface {
	ChatList() engine.ChatListState
	OpenChatState() engine.ChatState
	SubscribeNotifications(ctx context.Context) <-chan engine.Notification
}

// Commands is implemented by *dispatcher.Dispatcher.
type Commands interface {
	SendMessage(ctx context.Context, chatID int, text string, pictures []string) error
	EditMessage(ctx context.Context, chatID, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int) error
	ReadMessage(ctx context.Context, chatID, messageID int)
	CreateChat(ctx context.Context, input api.ChatInput, picture *api.Picture) (models.Chat, error)
	EditChat(ctx context.Context, chatID int, input api.ChatInput, picture *api.Picture) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID int) error
	LeaveChat(ctx context.Context, chatID int) error
	AddParticipants(ctx context.Context, chatID int, userIDs []int) (models.Chat, error)
	RemoveParticipant(ctx context.Context, chatID, userID int) (models.Chat, error)
	AssignAdmin(ctx context.Context, chatID, userID int) (models.Chat, error)
	RemoveAdmin(ctx context.Context, chatID, userID int) (models.Chat, error)
	GetDialog(ctx context.Context, userID int) (models.Chat, error)
}

// Register mounts every control route. auth guards the routes that need a
// signed-in user.
func Register(router gin.IRouter, chats *ChatHandler, groups *GroupHandler, events *EventsHandler, auth gin.HandlerFunc) {
	router.GET("/healthz", events.Health)

	authed := router.Group("/", auth)
	authed.GET("/events", events.Events)
	authed.POST("/logout", events.Logout)

	authed.GET("/chats", chats.ListChats)
	authed.POST("/chats/refresh", chats.RefreshChats)
	authed.GET("/chats/:chat_id", chats.GetChat)
	authed.POST("/chats/:chat_id/open", chats.OpenChat)
	authed.POST("/chats/:chat_id/close", chats.CloseChat)
	authed.POST("/chats/:chat_id/reload", chats.ReloadChat)
	authed.POST("/chats/:chat_id/messages/more", chats.LoadMore)
	authed.POST("/chats/:chat_id/messages", chats.PostMessage)
	authed.PATCH("/chats/:chat_id/messages/:message_id", chats.EditMessage)
	authed.DELETE("/chats/:chat_id/messages/:message_id", chats.DeleteMessage)
	authed.POST("/chats/:chat_id/messages/:message_id/read", chats.ReadMessage)

	authed.POST("/chats", groups.CreateChat)
	authed.PUT("/chats/:chat_id", groups.EditChat)
	authed.DELETE("/chats/:chat_id", groups.DeleteChat)
	authed.POST("/chats/:chat_id/leave", groups.LeaveChat)
	authed.POST("/chats/:chat_id/participants", groups.AddParticipants)
	authed.DELETE("/chats/:chat_id/participants/:user_id", groups.RemoveParticipant)
	authed.POST("/chats/:chat_id/admins/:user_id", groups.AssignAdmin)
	authed.DELETE("/chats/:chat_id/admins/:user_id", groups.RemoveAdmin)
	authed.GET("/dialogs/:user_id", groups.GetDialog)
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps a command or session error onto a status code.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": api.Message(err)}

	switch api.Classify(err) {
	case api.KindValidation:
		status = http.StatusUnprocessableEntity
		body["field"] = validation.FieldOf(err)
	case api.KindAuthentication:
		status = http.StatusUnauthorized
	case api.KindPermission:
		status = http.StatusForbidden
	case api.KindConnectivity:
		status = http.StatusServiceUnavailable
	case api.KindServer:
		status = http.StatusBadGateway
		if errors.Is(err, api.ErrChatNotFound) || errors.Is(err, api.ErrUserNotFound) {
			status = http.StatusNotFound
		}
	default:
		switch {
		case errors.Is(err, session.ErrNoOpenChat):
			status = http.StatusConflict
			body["error"] = err.Error()
		case errors.Is(err, engine.ErrClosed):
			status = http.StatusServiceUnavailable
			body["error"] = "session closed"
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Warn("control request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

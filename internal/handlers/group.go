package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
)

const maxPictureSize = 10 << 20

var errPictureTooLarge = errors.New("picture too large")

// GroupHandler manages chat creation, membership and roles.
type GroupHandler struct {
	commands Commands
	logger   *zap.Logger
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(commands Commands, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{commands: commands, logger: logger}
}

// bindChatInput reads a chat from either a JSON body or a multipart form
// with a "chat" JSON field and an optional "picture" file.
func bindChatInput(c *gin.Context) (api.ChatInput, *api.Picture, error) {
	var input api.ChatInput
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&input); err != nil {
			return input, nil, err
		}
		return input, nil, nil
	}

	if err := json.Unmarshal([]byte(c.PostForm("chat")), &input); err != nil {
		return input, nil, fmt.Errorf("chat field: %w", err)
	}

	header, err := c.FormFile("picture")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil, nil
	}
	if err != nil {
		return input, nil, err
	}
	if header.Size > maxPictureSize {
		return input, nil, errPictureTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return input, nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxPictureSize))
	if err != nil {
		return input, nil, err
	}
	return input, &api.Picture{Filename: header.Filename, Content: content}, nil
}

func (h *GroupHandler) respondChat(c *gin.Context, status int, chat models.Chat, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(status, gin.H{"chat": chat})
}

// CreateChat handles POST /chats.
func (h *GroupHandler) CreateChat(c *gin.Context) {
	input, picture, err := bindChatInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Type == "" {
		input.Type = models.ChatTypeGroup
	}

	chat, err := h.commands.CreateChat(c.Request.Context(), input, picture)
	h.respondChat(c, http.StatusCreated, chat, err)
}

// EditChat handles PUT /chats/:chat_id.
func (h *GroupHandler) EditChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	input, picture, err := bindChatInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.commands.EditChat(c.Request.Context(), chatID, input, picture)
	h.respondChat(c, http.StatusOK, chat, err)
}

// DeleteChat handles DELETE /chats/:chat_id.
func (h *GroupHandler) DeleteChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if err := h.commands.DeleteChat(c.Request.Context(), chatID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveChat handles POST /chats/:chat_id/leave.
func (h *GroupHandler) LeaveChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if err := h.commands.LeaveChat(c.Request.Context(), chatID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddParticipants handles POST /chats/:chat_id/participants.
func (h *GroupHandler) AddParticipants(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		UserIDs []int `json:"user_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.commands.AddParticipants(c.Request.Context(), chatID, req.UserIDs)
	h.respondChat(c, http.StatusOK, chat, err)
}

// RemoveParticipant handles DELETE /chats/:chat_id/participants/:user_id.
func (h *GroupHandler) RemoveParticipant(c *gin.Context) {
	h.memberCommand(c, h.commands.RemoveParticipant)
}

// AssignAdmin handles POST /chats/:chat_id/admins/:user_id.
func (h *GroupHandler) AssignAdmin(c *gin.Context) {
	h.memberCommand(c, h.commands.AssignAdmin)
}

// RemoveAdmin handles DELETE /chats/:chat_id/admins/:user_id.
func (h *GroupHandler) RemoveAdmin(c *gin.Context) {
	h.memberCommand(c, h.commands.RemoveAdmin)
}

func (h *GroupHandler) memberCommand(c *gin.Context, run func(ctx context.Context, chatID, userID int) (models.Chat, error)) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}

	chat, err := run(c.Request.Context(), chatID, userID)
	h.respondChat(c, http.StatusOK, chat, err)
}

// GetDialog handles GET /dialogs/:user_id.
func (h *GroupHandler) GetDialog(c *gin.Context) {
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	if userID == userIDFromContext(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a dialog with yourself"})
		return
	}

	chat, err := h.commands.GetDialog(c.Request.Context(), userID)
	h.respondChat(c, http.StatusOK, chat, err)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-sync/internal/engine"
	"chat-sync/internal/models"
)

// ChatHandler serves the chat list, the open chat and message commands.
type ChatHandler struct {
	session    Session
	projection Projection
	commands   Commands
	logger     *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(session Session, projection Projection, commands Commands, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		session:    session,
		projection: projection,
		commands:   commands,
		logger:     logger,
	}
}

type openChatResponse struct {
	ChatID     int              `json:"chat_id"`
	Chat       *models.Chat     `json:"chat,omitempty"`
	Messages   []models.Message `json:"messages"`
	EndReached bool             `json:"end_reached"`
	Loading    bool             `json:"loading"`
	Closed     bool             `json:"closed"`
}

func newOpenChatResponse(s engine.ChatState) openChatResponse {
	msgs := s.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return openChatResponse{
		ChatID:     s.ChatID,
		Chat:       s.Chat,
		Messages:   msgs,
		EndReached: s.EndReached,
		Loading:    s.Loading,
		Closed:     s.Closed,
	}
}

// ListChats handles GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats := h.projection.ChatList().Chats
	if chats == nil {
		chats = []models.Chat{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats, "open_chat_id": h.session.OpenChatID()})
}

// RefreshChats handles POST /chats/refresh.
func (h *ChatHandler) RefreshChats(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": h.projection.ChatList().Chats})
}

// GetChat handles GET /chats/:chat_id. The open chat is returned with its
// messages, any other chat from the list without them.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}

	if state := h.projection.OpenChatState(); state.ChatID == chatID {
		c.JSON(http.StatusOK, newOpenChatResponse(state))
		return
	}

	chat, found := h.projection.ChatList().Chat(chatID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "chat": chat})
}

// OpenChat handles POST /chats/:chat_id/open.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if err := h.session.OpenChat(c.Request.Context(), chatID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newOpenChatResponse(h.projection.OpenChatState()))
}

// CloseChat handles POST /chats/:chat_id/close.
func (h *ChatHandler) CloseChat(c *gin.Context) {
	if _, ok := h.requireOpen(c); !ok {
		return
	}
	if err := h.session.CloseChat(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReloadChat handles POST /chats/:chat_id/reload.
func (h *ChatHandler) ReloadChat(c *gin.Context) {
	if _, ok := h.requireOpen(c); !ok {
		return
	}
	if err := h.session.ReloadChat(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newOpenChatResponse(h.projection.OpenChatState()))
}

// LoadMore handles POST /chats/:chat_id/messages/more.
func (h *ChatHandler) LoadMore(c *gin.Context) {
	if _, ok := h.requireOpen(c); !ok {
		return
	}
	if err := h.session.LoadMore(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newOpenChatResponse(h.projection.OpenChatState()))
}

// PostMessage handles POST /chats/:chat_id/messages. The message shows up in
// the projection once the server echoes it.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Text     string   `json:"text"`
		Pictures []string `json:"pictures"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.commands.SendMessage(c.Request.Context(), chatID, req.Text, req.Pictures); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// EditMessage handles PATCH /chats/:chat_id/messages/:message_id.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.commands.EditMessage(c.Request.Context(), chatID, messageID, req.Text); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// DeleteMessage handles DELETE /chats/:chat_id/messages/:message_id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}

	if err := h.commands.DeleteMessage(c.Request.Context(), chatID, messageID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// ReadMessage handles POST /chats/:chat_id/messages/:message_id/read.
// Read receipts are best effort and always accepted.
func (h *ChatHandler) ReadMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}

	h.commands.ReadMessage(c.Request.Context(), chatID, messageID)
	c.Status(http.StatusAccepted)
}

func (h *ChatHandler) requireOpen(c *gin.Context) (int, bool) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return 0, false
	}
	if h.session.OpenChatID() != chatID {
		c.JSON(http.StatusConflict, gin.H{"error": "chat is not open"})
		return 0, false
	}
	return chatID, true
}

// Package api is the REST collaborator used for chat management and message history.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"chat-sync/internal/credentials"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// ChatAPI is the REST surface consumed by the dispatcher and the session.
type ChatAPI interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetDialog(ctx context.Context, userID int) (models.Chat, error)
	CreateChat(ctx context.Context, input ChatInput, picture *Picture) (models.Chat, error)
	UpdateChat(ctx context.Context, chatID int, input ChatInput, picture *Picture) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID int) error
	LeaveChat(ctx context.Context, chatID int) error
	AddParticipants(ctx context.Context, chatID int, userIDs []int) (models.Chat, error)
	RemoveParticipant(ctx context.Context, chatID, userID int) (models.Chat, error)
	AssignAdmin(ctx context.Context, chatID, userID int) (models.Chat, error)
	RemoveAdmin(ctx context.Context, chatID, userID int) (models.Chat, error)
	ListMessages(ctx context.Context, chatID, page, pageSize int) ([]models.Message, error)
}

// TokenSource returns the bearer token or credentials.ErrUnauthorized.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NetworkMonitor reports whether the device believes it is online.
type NetworkMonitor interface {
	Available() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Available() bool { return true }

// ChatInput is the JSON part of a create or update request.
type ChatInput struct {
	Name           string          `json:"name"`
	Type           models.ChatType `json:"type,omitempty"`
	ParticipantIDs []int           `json:"participantIds,omitempty"`
}

// Picture is an optional image uploaded alongside a chat.
type Picture struct {
	Filename string
	Content  []byte
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	monitor    NetworkMonitor
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithNetworkMonitor(m NetworkMonitor) Option {
	return func(cl *Client) { cl.monitor = m }
}

func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		monitor:    alwaysOnline{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ChatAPI = (*Client)(nil)

func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/chats", nil, &chats)
	return chats, err
}

func (c *Client) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chatID), nil, &chat)
	return chat, err
}

func (c *Client) GetDialog(ctx context.Context, userID int) (models.Chat, error) {
	var chat models.Chat
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/chats/dialog/%d", userID), nil, &chat)
	return chat, err
}

func (c *Client) CreateChat(ctx context.Context, input ChatInput, picture *Picture) (models.Chat, error) {
	var chat models.Chat
	err := c.doMultipart(ctx, http.MethodPost, "/api/v1/chats", input, picture, &chat)
	return chat, err
}

func (c *Client) UpdateChat(ctx context.Context, chatID int, input ChatInput, picture *Picture) (models.Chat, error) {
	var chat models.Chat
	err := c.doMultipart(ctx, http.MethodPut, fmt.Sprintf("/api/v1/chats/%d", chatID), input, picture, &chat)
	return chat, err
}

func (c *Client) DeleteChat(ctx context.Context, chatID int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/chats/%d", chatID), nil, nil)
}

func (c *Client) LeaveChat(ctx context.Context, chatID int) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/leave", chatID), nil, nil)
}

func (c *Client) AddParticipants(ctx context.Context, chatID int, userIDs []int) (models.Chat, error) {
	var chat models.Chat
	body := struct {
		UserIDs []int `json:"userIds"`
	}{userIDs}
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/participants", chatID), body, &chat)
	return chat, err
}

func (c *Client) RemoveParticipant(ctx context.Context, chatID, userID int) (models.Chat, error) {
	var chat models.Chat
	err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/chats/%d/participants/%d", chatID, userID), nil, &chat)
	return chat, err
}

func (c *Client) AssignAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	var chat models.Chat
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/admins/%d", chatID, userID), nil, &chat)
	return chat, err
}

func (c *Client) RemoveAdmin(ctx context.Context, chatID, userID int) (models.Chat, error) {
	var chat models.Chat
	err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/chats/%d/admins/%d", chatID, userID), nil, &chat)
	return chat, err
}

func (c *Client) ListMessages(ctx context.Context, chatID, page, pageSize int) ([]models.Message, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	var messages []models.Message
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d/messages?%s", chatID, q.Encode()), nil, &messages)
	return messages, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, input ChatInput, picture *Picture, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	chatJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	if err := w.WriteField("chat", string(chatJSON)); err != nil {
		return fmt.Errorf("write chat part: %w", err)
	}
	if picture != nil {
		part, err := w.CreateFormFile("picture", picture.Filename)
		if err != nil {
			return fmt.Errorf("create picture part: %w", err)
		}
		if _, err := part.Write(picture.Content); err != nil {
			return fmt.Errorf("write picture part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.do(ctx, method, path, &buf, w.FormDataContentType(), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if !c.monitor.Available() {
		return ErrNoConnection
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := observability.SetRequestID(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sErr := decodeError(resp)
		c.logger.Info("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("status", sErr.Status),
			zap.String("code", sErr.Code),
		)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", credentials.ErrUnauthorized, sErr.Error())
		}
		return sErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) *ServerError {
	sErr := &ServerError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		sErr.Message = http.StatusText(resp.StatusCode)
		return sErr
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		sErr.Message = strings.TrimSpace(string(data))
		return sErr
	}
	sErr.Code = body.Code
	sErr.Message = body.Message
	return sErr
}

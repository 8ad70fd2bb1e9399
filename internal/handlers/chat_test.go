package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/api"
	"chat-sync/internal/credentials"
	"chat-sync/internal/engine"
	"chat-sync/internal/models"
	"chat-sync/internal/session"
	"chat-sync/internal/validation"
	"chat-sync/internal/ws"
)

func TestListChats(t *testing.T) {
	f := newFixture(t)
	f.projection.list = engine.ChatListState{Chats: []models.Chat{group(2, "b"), group(1, "a")}}
	f.session.On("OpenChatID").Return(2).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/chats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec.Body)
	assert.Len(t, resp["chats"], 2)
	assert.EqualValues(t, 2, resp["open_chat_id"])
}

func TestRefreshChatsFailure(t *testing.T) {
	f := newFixture(t)
	f.session.On("Refresh", mock.Anything).Return(fmt.Errorf("%w: dial tcp", api.ErrNoConnection)).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/refresh", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "poor network connection", decode(t, rec.Body)["error"])
}

func TestGetChatOpenIncludesMessages(t *testing.T) {
	f := newFixture(t)
	chat := group(5, "open")
	f.projection.chat = engine.ChatState{
		ChatID:   5,
		Chat:     &chat,
		Messages: []models.Message{{ID: 11, ChatID: 5}, {ID: 10, ChatID: 5}},
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/chats/5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec.Body)
	assert.Len(t, resp["messages"], 2)
	assert.Equal(t, false, resp["end_reached"])
}

func TestGetChatFromList(t *testing.T) {
	f := newFixture(t)
	f.projection.list = engine.ChatListState{Chats: []models.Chat{group(3, "listed")}}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/chats/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/chats/4", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/chats/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenChatSuccess(t *testing.T) {
	f := newFixture(t)
	chat := group(5, "open")
	f.projection.chat = engine.ChatState{ChatID: 5, Chat: &chat}
	f.session.On("OpenChat", mock.Anything, 5).Return(nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/open", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec.Body)
	assert.EqualValues(t, 5, resp["chat_id"])
	assert.Empty(t, resp["messages"])
}

func TestOpenChatErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"offline", fmt.Errorf("%w: offline", api.ErrNoConnection), http.StatusServiceUnavailable},
		{"unauthorized", credentials.ErrUnauthorized, http.StatusUnauthorized},
		{"not participant", &api.ServerError{Status: 403, Code: "NOT_CHAT_PARTICIPANT"}, http.StatusForbidden},
		{"missing chat", &api.ServerError{Status: 404, Code: "CHAT_NOT_FOUND"}, http.StatusNotFound},
		{"server", &api.ServerError{Status: 500, Message: "boom"}, http.StatusBadGateway},
		{"closed", engine.ErrClosed, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.session.On("OpenChat", mock.Anything, 5).Return(tc.err).Once()

			rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/open", nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestLoadMoreRequiresOpenChat(t *testing.T) {
	f := newFixture(t)
	f.session.On("OpenChatID").Return(3).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages/more", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoadMoreSuccess(t *testing.T) {
	f := newFixture(t)
	f.projection.chat = engine.ChatState{ChatID: 5, Messages: []models.Message{{ID: 1, ChatID: 5}}, EndReached: true}
	f.session.On("OpenChatID").Return(5).Once()
	f.session.On("LoadMore", mock.Anything).Return(nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages/more", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec.Body)["end_reached"])
}

func TestLoadMoreWithoutCursor(t *testing.T) {
	f := newFixture(t)
	f.session.On("OpenChatID").Return(5).Once()
	f.session.On("LoadMore", mock.Anything).Return(session.ErrNoOpenChat).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages/more", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCloseAndReloadChat(t *testing.T) {
	f := newFixture(t)
	f.session.On("OpenChatID").Return(5).Twice()
	f.session.On("ReloadChat", mock.Anything).Return(nil).Once()
	f.session.On("CloseChat", mock.Anything).Return(nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/chats/5/close", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPostMessageAccepted(t *testing.T) {
	f := newFixture(t)
	f.commands.On("SendMessage", mock.Anything, 5, "hi", []string{"p.png"}).Return(nil).Once()

	body := bytes.NewBufferString(`{"text":"hi","pictures":["p.png"]}`)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostMessageValidationError(t *testing.T) {
	f := newFixture(t)
	f.commands.On("SendMessage", mock.Anything, 5, "", []string(nil)).Return(validation.ErrMessageEmpty).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"text":""}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "message", decode(t, rec.Body)["field"])
}

func TestPostMessageWithoutSocket(t *testing.T) {
	f := newFixture(t)
	f.commands.On("SendMessage", mock.Anything, 5, "hi", []string(nil)).
		Return(fmt.Errorf("%w: %w", api.ErrNoConnection, ws.ErrNotConnected)).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"text":"hi"}`)))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "poor network connection", decode(t, rec.Body)["error"])
}

func TestPostMessageInvalidBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditAndDeleteMessage(t *testing.T) {
	f := newFixture(t)
	f.commands.On("EditMessage", mock.Anything, 5, 9, "fixed").Return(nil).Once()
	f.commands.On("DeleteMessage", mock.Anything, 5, 9).Return(api.ErrPermissionDenied).Once()

	rec := f.do(httptest.NewRequest(http.MethodPatch, "/chats/5/messages/9", bytes.NewBufferString(`{"text":"fixed"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/chats/5/messages/9", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReadMessageAlwaysAccepted(t *testing.T) {
	f := newFixture(t)
	f.commands.On("ReadMessage", mock.Anything, 5, 9).Return().Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages/9/read", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/chats/5/messages/0/read", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

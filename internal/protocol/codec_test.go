package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSendMessage(t *testing.T) {
	ev, err := Decode(`SEND_MESSAGE#{"id":5,"chatId":2,"authorId":1,"type":"MESSAGE","text":"hi #1","isRead":false,"usersSeenMessage":[],"createdAt":"2024-01-01T00:00:00Z"}`)
	require.NoError(t, err)

	sent, ok := ev.(MessageSent)
	require.True(t, ok, "expected MessageSent, got %T", ev)
	assert.Equal(t, 5, sent.Message.ID)
	assert.Equal(t, 2, sent.Message.ChatID)
	require.NotNil(t, sent.Message.Text)
	assert.Equal(t, "hi #1", *sent.Message.Text)
}

func TestDecodeEditAndReadCollapse(t *testing.T) {
	payload := `{"id":9,"chatId":3,"isRead":true,"usersSeenMessage":[4],"createdAt":"2024-01-01T00:00:00Z"}`

	edit, err := Decode("EDIT_MESSAGE#" + payload)
	require.NoError(t, err)
	read, err := Decode("READ_MESSAGE#" + payload)
	require.NoError(t, err)

	editEv, ok := edit.(MessageUpdated)
	require.True(t, ok)
	readEv, ok := read.(MessageUpdated)
	require.True(t, ok)

	assert.Equal(t, editEv.Message, readEv.Message)
	assert.False(t, editEv.Read)
	assert.True(t, readEv.Read)
	assert.Equal(t, ReadMessageEvent, readEv.Name())
}

func TestDecodeBareIntegerPayloads(t *testing.T) {
	ev, err := Decode("LEAVE_CHAT#7")
	require.NoError(t, err)
	assert.Equal(t, LeftChat{UserID: 7}, ev)

	ev, err = Decode("DELETE_CHAT_PARTICIPANT#12")
	require.NoError(t, err)
	assert.Equal(t, ParticipantDeleted{UserID: 12}, ev)

	_, err = Decode(`LEAVE_CHAT#{"id":7}`)
	require.ErrorIs(t, err, ErrPayloadParse)
}

func TestDecodeChatEvents(t *testing.T) {
	ev, err := Decode(`CREATE_CHAT#{"id":10,"name":"team","type":"GROUP","participants":[{"user":{"id":1},"role":"CREATOR"}],"unreadCount":0}`)
	require.NoError(t, err)
	created, ok := ev.(ChatCreated)
	require.True(t, ok)
	assert.Equal(t, 10, created.Chat.ID)
	assert.Len(t, created.Chat.Participants, 1)

	ev, err = Decode(`DELETE_CHAT#{"id":10}`)
	require.NoError(t, err)
	assert.Equal(t, ChatDeleted{ChatID: 10}, ev)

	ev, err = Decode(`DELETE_MESSAGE#{"id":3,"chatId":10}`)
	require.NoError(t, err)
	assert.Equal(t, MessageDeleted{MessageID: 3}, ev)

	ev, err = Decode(`ADD_CHAT_PARTICIPANTS#[{"user":{"id":4},"role":"MEMBER"}]`)
	require.NoError(t, err)
	added, ok := ev.(ParticipantsAdded)
	require.True(t, ok)
	assert.Equal(t, 4, added.Participants[0].User.ID)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"no delimiter", "SEND_MESSAGE", ErrMalformedFrame},
		{"empty", "", ErrMalformedFrame},
		{"numeric prefix", "5#{}", ErrUnknownEventType},
		{"lowercase prefix", "send_message#{}", ErrUnknownEventType},
		{"bad json", "SEND_MESSAGE#{", ErrPayloadParse},
		{"message without id", `SEND_MESSAGE#{"chatId":1}`, ErrPayloadParse},
		{"chat without id", `UPDATE_CHAT#{"name":"x"}`, ErrPayloadParse},
		{"participants not a list", `ADD_CHAT_PARTICIPANTS#{"user":{"id":1}}`, ErrPayloadParse},
		{"null delete", "DELETE_MESSAGE#null", ErrPayloadParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.raw)
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tt.want)

			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeUsesFirstDelimiter(t *testing.T) {
	// The prefix ends at the first '#', so a '#' inside the name part breaks the frame.
	_, err := Decode(`SEND#MESSAGE#{"id":1,"chatId":1}`)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestEncodeCommands(t *testing.T) {
	frame, err := Encode(SendMessage{ChatID: 2, Text: "hello", Pictures: []string{"a.png"}})
	require.NoError(t, err)
	assert.Equal(t, `SEND_MESSAGE#{"chatId":2,"text":"hello","pictures":["a.png"]}`, frame)

	frame, err = Encode(EditMessage{MessageID: 4, Text: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, `EDIT_MESSAGE#{"id":4,"text":"fixed"}`, frame)

	frame, err = Encode(DeleteMessage{MessageID: 4})
	require.NoError(t, err)
	assert.Equal(t, `DELETE_MESSAGE#{"id":4}`, frame)

	frame, err = Encode(ReadMessage{MessageID: 4})
	require.NoError(t, err)
	assert.Equal(t, `READ_MESSAGE#{"id":4}`, frame)
}

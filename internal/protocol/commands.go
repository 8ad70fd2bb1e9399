package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is an outgoing message-stream command.
type Command interface {
	Name() EventName
	payload() any
}

// SendMessage asks the server to post a message.
type SendMessage struct {
	ChatID   int
	Text     string
	Pictures []string
}

// EditMessage replaces the text of a message.
type EditMessage struct {
	MessageID int
	Text      string
}

// DeleteMessage removes a message.
type DeleteMessage struct{ MessageID int }

// ReadMessage marks a message as read by the local user.
type ReadMessage struct{ MessageID int }

func (SendMessage) Name() EventName   { return SendMessageEvent }
func (EditMessage) Name() EventName   { return EditMessageEvent }
func (DeleteMessage) Name() EventName { return DeleteMessageEvent }
func (ReadMessage) Name() EventName   { return ReadMessageEvent }

func (c SendMessage) payload() any {
	return struct {
		ChatID   int      `json:"chatId"`
		Text     string   `json:"text,omitempty"`
		Pictures []string `json:"pictures,omitempty"`
	}{c.ChatID, c.Text, c.Pictures}
}

func (c EditMessage) payload() any {
	return struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	}{c.MessageID, c.Text}
}

func (c DeleteMessage) payload() any { return idPayload{ID: c.MessageID} }
func (c ReadMessage) payload() any   { return idPayload{ID: c.MessageID} }

// Encode serializes a command into a frame.
func Encode(cmd Command) (string, error) {
	body, err := json.Marshal(cmd.payload())
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}
	return string(cmd.Name()) + Delimiter + string(body), nil
}

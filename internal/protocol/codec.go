package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-sync/internal/models"
)

// Delimiter separates the event name from its payload. The first occurrence wins.
const Delimiter = "#"

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrPayloadParse     = errors.New("payload parse error")
)

// DecodeError describes why a frame could not be decoded.
type DecodeError struct {
	Name EventName
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(name EventName, kind error, cause error) error {
	if cause == nil {
		return &DecodeError{Name: name, Err: kind}
	}
	return &DecodeError{Name: name, Err: fmt.Errorf("%w: %v", kind, cause)}
}

type idPayload struct {
	ID int `json:"id"`
}

// Decode parses a raw frame into a domain event.
func Decode(raw string) (Event, error) {
	prefix, payload, found := strings.Cut(raw, Delimiter)
	if !found {
		return nil, decodeErr("", ErrMalformedFrame, nil)
	}
	name := EventName(prefix)
	if !name.Known() {
		return nil, decodeErr("", fmt.Errorf("%w %q", ErrUnknownEventType, prefix), nil)
	}
	data := []byte(payload)

	switch name {
	case SendMessageEvent, EditMessageEvent, ReadMessageEvent:
		msg, err := decodeMessage(data)
		if err != nil {
			return nil, decodeErr(name, ErrPayloadParse, err)
		}
		if name == SendMessageEvent {
			return MessageSent{Message: msg}, nil
		}
		return MessageUpdated{Message: msg, Read: name == ReadMessageEvent}, nil

	case DeleteMessageEvent, DeleteChatEvent:
		id, err := decodeID(data)
		if err != nil {
			return nil, decodeErr(name, ErrPayloadParse, err)
		}
		if name == DeleteMessageEvent {
			return MessageDeleted{MessageID: id}, nil
		}
		return ChatDeleted{ChatID: id}, nil

	case CreateChatEvent, UpdateChatEvent:
		chat, err := decodeChat(data)
		if err != nil {
			return nil, decodeErr(name, ErrPayloadParse, err)
		}
		if name == CreateChatEvent {
			return ChatCreated{Chat: chat}, nil
		}
		return ChatUpdated{Chat: chat}, nil

	case LeaveChatEvent, DeleteChatParticipantEvent:
		var userID int
		if err := json.Unmarshal(data, &userID); err != nil {
			return nil, decodeErr(name, ErrPayloadParse, err)
		}
		if userID <= 0 {
			return nil, decodeErr(name, ErrPayloadParse, errors.New("missing user id"))
		}
		if name == LeaveChatEvent {
			return LeftChat{UserID: userID}, nil
		}
		return ParticipantDeleted{UserID: userID}, nil

	case AddChatParticipantsEvent:
		var participants []models.ChatParticipant
		if err := json.Unmarshal(data, &participants); err != nil {
			return nil, decodeErr(name, ErrPayloadParse, err)
		}
		for _, p := range participants {
			if p.User.ID <= 0 {
				return nil, decodeErr(name, ErrPayloadParse, errors.New("participant without user id"))
			}
		}
		return ParticipantsAdded{Participants: participants}, nil
	}

	return nil, decodeErr(name, ErrUnknownEventType, nil)
}

func decodeMessage(data []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Message{}, err
	}
	if msg.ID <= 0 || msg.ChatID <= 0 {
		return models.Message{}, errors.New("message without id or chatId")
	}
	return msg, nil
}

func decodeChat(data []byte) (models.Chat, error) {
	var chat models.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return models.Chat{}, err
	}
	if chat.ID <= 0 {
		return models.Chat{}, errors.New("chat without id")
	}
	return chat, nil
}

func decodeID(data []byte) (int, error) {
	var p idPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	if p.ID <= 0 {
		return 0, errors.New("missing id")
	}
	return p.ID, nil
}

// Package protocol implements the duplex channel framing: "<EVENT_NAME>#<json>".
package protocol

import "chat-sync/internal/models"

// EventName is the wire prefix of a frame.
type EventName string

const (
	SendMessageEvent           EventName = "SEND_MESSAGE"
	EditMessageEvent           EventName = "EDIT_MESSAGE"
	DeleteMessageEvent         EventName = "DELETE_MESSAGE"
	ReadMessageEvent           EventName = "READ_MESSAGE"
	CreateChatEvent            EventName = "CREATE_CHAT"
	UpdateChatEvent            EventName = "UPDATE_CHAT"
	DeleteChatEvent            EventName = "DELETE_CHAT"
	LeaveChatEvent             EventName = "LEAVE_CHAT"
	AddChatParticipantsEvent   EventName = "ADD_CHAT_PARTICIPANTS"
	DeleteChatParticipantEvent EventName = "DELETE_CHAT_PARTICIPANT"
)

var knownEvents = map[EventName]struct{}{
	SendMessageEvent:           {},
	EditMessageEvent:           {},
	DeleteMessageEvent:         {},
	ReadMessageEvent:           {},
	CreateChatEvent:            {},
	UpdateChatEvent:            {},
	DeleteChatEvent:            {},
	LeaveChatEvent:             {},
	AddChatParticipantsEvent:   {},
	DeleteChatParticipantEvent: {},
}

// Known reports whether name belongs to the protocol.
func (n EventName) Known() bool {
	_, ok := knownEvents[n]
	return ok
}

// Event is a decoded domain event. The concrete types below are the only implementations.
type Event interface {
	Name() EventName
	isEvent()
}

// ChatCreated carries a chat the user has just become part of.
type ChatCreated struct{ Chat models.Chat }

// ChatUpdated carries the authoritative new version of a chat.
type ChatUpdated struct{ Chat models.Chat }

// ChatDeleted reports that a chat no longer exists.
type ChatDeleted struct{ ChatID int }

// LeftChat reports that a user left the chat of the scope it arrived on.
type LeftChat struct{ UserID int }

// MessageSent is the server echo of a new message.
type MessageSent struct{ Message models.Message }

// MessageUpdated covers both edits and read receipts. Read is true when the
// frame was a READ_MESSAGE; the merge does not depend on it.
type MessageUpdated struct {
	Message models.Message
	Read    bool
}

// MessageDeleted reports a removed message.
type MessageDeleted struct{ MessageID int }

// ParticipantsAdded carries participants joining (or changing role in) the scope's chat.
type ParticipantsAdded struct{ Participants []models.ChatParticipant }

// ParticipantDeleted reports a user removed from the scope's chat.
type ParticipantDeleted struct{ UserID int }

func (ChatCreated) Name() EventName        { return CreateChatEvent }
func (ChatUpdated) Name() EventName        { return UpdateChatEvent }
func (ChatDeleted) Name() EventName        { return DeleteChatEvent }
func (LeftChat) Name() EventName           { return LeaveChatEvent }
func (MessageSent) Name() EventName        { return SendMessageEvent }
func (ParticipantsAdded) Name() EventName  { return AddChatParticipantsEvent }
func (ParticipantDeleted) Name() EventName { return DeleteChatParticipantEvent }
func (MessageDeleted) Name() EventName     { return DeleteMessageEvent }

func (e MessageUpdated) Name() EventName {
	if e.Read {
		return ReadMessageEvent
	}
	return EditMessageEvent
}

func (ChatCreated) isEvent()        {}
func (ChatUpdated) isEvent()        {}
func (ChatDeleted) isEvent()        {}
func (LeftChat) isEvent()           {}
func (MessageSent) isEvent()        {}
func (MessageUpdated) isEvent()     {}
func (MessageDeleted) isEvent()     {}
func (ParticipantsAdded) isEvent()  {}
func (ParticipantDeleted) isEvent() {}

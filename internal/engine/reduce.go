package engine

import (
	"errors"
	"fmt"

	"chat-sync/internal/models"
	"chat-sync/internal/protocol"
)

// Reasons an input is dropped without changing a projection.
var (
	errNotOpen     = errors.New("no chat is open")
	errOtherChat   = errors.New("event for another chat")
	errClosedChat  = errors.New("chat projection is closed")
	errNoReference = errors.New("event carries no chat reference")
	errUnhandled   = errors.New("event not handled on this scope")
)

// upsertChat removes any chat with the same id, appends the incoming one and
// re-sorts the list.
func upsertChat(s ChatListState, chat models.Chat) (ChatListState, error) {
	if err := chat.Validate(); err != nil {
		return s, err
	}
	out := make([]models.Chat, 0, len(s.Chats)+1)
	for _, c := range s.Chats {
		if c.ID != chat.ID {
			out = append(out, c)
		}
	}
	out = append(out, chat)
	models.SortChats(out)
	return ChatListState{Chats: out}, nil
}

func removeChat(s ChatListState, chatID int) ChatListState {
	out := make([]models.Chat, 0, len(s.Chats))
	for _, c := range s.Chats {
		if c.ID != chatID {
			out = append(out, c)
		}
	}
	return ChatListState{Chats: out}
}

// replaceChats builds a fresh list. Invalid chats are skipped and reported.
func replaceChats(chats []models.Chat) (ChatListState, []error) {
	var errs []error
	out := make([]models.Chat, 0, len(chats))
	seen := make(map[int]int, len(chats))
	for _, c := range chats {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if i, ok := seen[c.ID]; ok {
			out[i] = c
			continue
		}
		seen[c.ID] = len(out)
		out = append(out, c)
	}
	models.SortChats(out)
	return ChatListState{Chats: out}, errs
}

// reduceGlobal applies a chat-list scope event.
func reduceGlobal(s ChatListState, ev protocol.Event) (ChatListState, error) {
	switch e := ev.(type) {
	case protocol.ChatCreated:
		return upsertChat(s, e.Chat)
	case protocol.ChatUpdated:
		return upsertChat(s, e.Chat)
	case protocol.ChatDeleted:
		return removeChat(s, e.ChatID), nil
	case protocol.LeftChat, protocol.ParticipantsAdded, protocol.ParticipantDeleted:
		return s, errNoReference
	default:
		return s, errUnhandled
	}
}

func openChat(chatID int, header *models.Chat) ChatState {
	return ChatState{ChatID: chatID, Chat: header}
}

// replaceHeader swaps the open chat's header when ids match.
func replaceHeader(s ChatState, chat models.Chat) (ChatState, error) {
	if !s.IsOpen() {
		return s, errNotOpen
	}
	if s.ChatID != chat.ID {
		return s, errOtherChat
	}
	if s.Closed {
		return s, errClosedChat
	}
	if err := chat.Validate(); err != nil {
		return s, err
	}
	c := chat
	s.Chat = &c
	return s, nil
}

// markDeleted closes the projection and signals navigation once.
func markDeleted(s ChatState, chatID int) (ChatState, []Notification, error) {
	if !s.IsOpen() {
		return s, nil, errNotOpen
	}
	if s.ChatID != chatID {
		return s, nil, errOtherChat
	}
	if s.Closed {
		return s, nil, errClosedChat
	}
	s.Closed = true
	return s, []Notification{{Kind: NotifyChatDeleted, ChatID: chatID}}, nil
}

// removeMember drops userID from the header. When userID is the local user the
// projection closes and kind is emitted.
func removeMember(s ChatState, self, userID int, kind NotificationKind) (ChatState, []Notification) {
	if s.Chat != nil {
		c := s.Chat.WithoutParticipant(userID)
		s.Chat = &c
	}
	if userID != self {
		return s, nil
	}
	s.Closed = true
	return s, []Notification{{Kind: kind, ChatID: s.ChatID, UserID: userID}}
}

// reduceChat applies a per-chat scope event to the open chat.
func reduceChat(s ChatState, self int, ev protocol.Event) (ChatState, []Notification, error) {
	if !s.IsOpen() {
		return s, nil, errNotOpen
	}
	if s.Closed {
		return s, nil, errClosedChat
	}

	switch e := ev.(type) {
	case protocol.ChatCreated:
		next, err := replaceHeader(s, e.Chat)
		return next, nil, err
	case protocol.ChatUpdated:
		next, err := replaceHeader(s, e.Chat)
		return next, nil, err
	case protocol.ChatDeleted:
		return markDeleted(s, e.ChatID)
	case protocol.LeftChat:
		next, notes := removeMember(s, self, e.UserID, NotifyLeftChat)
		return next, notes, nil
	case protocol.ParticipantDeleted:
		next, notes := removeMember(s, self, e.UserID, NotifyKickedFromChat)
		return next, notes, nil
	case protocol.ParticipantsAdded:
		if s.Chat == nil {
			return s, nil, nil
		}
		c := s.Chat.WithParticipants(e.Participants)
		s.Chat = &c
		return s, nil, nil
	case protocol.MessageSent:
		return messageSent(s, e.Message)
	case protocol.MessageUpdated:
		return messageUpdated(s, e.Message)
	case protocol.MessageDeleted:
		s.Messages = removeMessage(s.Messages, e.MessageID)
		return s, nil, nil
	default:
		return s, nil, errUnhandled
	}
}

func messageSent(s ChatState, msg models.Message) (ChatState, []Notification, error) {
	if msg.ChatID != s.ChatID {
		return s, nil, fmt.Errorf("%w: message %d belongs to chat %d", errOtherChat, msg.ID, msg.ChatID)
	}
	if i := indexOfMessage(s.Messages, msg.ID); i >= 0 {
		s.Messages = replaceMessage(s.Messages, i, models.MergeMessage(s.Messages[i], msg))
		return s, nil, nil
	}
	out := make([]models.Message, 0, len(s.Messages)+1)
	out = append(out, msg)
	out = append(out, s.Messages...)
	s.Messages = out
	return s, []Notification{{Kind: NotifyNewMessage, ChatID: s.ChatID, MessageID: msg.ID, UserID: msg.AuthorID}}, nil
}

// messageUpdated merges in place. An update for an unseen message is dropped.
func messageUpdated(s ChatState, msg models.Message) (ChatState, []Notification, error) {
	i := indexOfMessage(s.Messages, msg.ID)
	if i < 0 {
		return s, nil, nil
	}
	s.Messages = replaceMessage(s.Messages, i, models.MergeMessage(s.Messages[i], msg))
	return s, nil, nil
}

// appendPage adds messages whose ids are not yet present, keeping the first
// version seen.
func appendPage(s ChatState, chatID int, items []models.Message, endReached bool) (ChatState, error) {
	if !s.IsOpen() {
		return s, errNotOpen
	}
	if s.ChatID != chatID {
		return s, errOtherChat
	}
	seen := make(map[int]struct{}, len(s.Messages)+len(items))
	for _, m := range s.Messages {
		seen[m.ID] = struct{}{}
	}
	out := make([]models.Message, len(s.Messages), len(s.Messages)+len(items))
	copy(out, s.Messages)
	for _, m := range items {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	s.Messages = out
	s.EndReached = endReached
	return s, nil
}

func indexOfMessage(messages []models.Message, id int) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func replaceMessage(messages []models.Message, i int, m models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)
	out[i] = m
	return out
}

func removeMessage(messages []models.Message, id int) []models.Message {
	i := indexOfMessage(messages, id)
	if i < 0 {
		return messages
	}
	out := make([]models.Message, 0, len(messages)-1)
	out = append(out, messages[:i]...)
	return append(out, messages[i+1:]...)
}

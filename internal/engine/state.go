// Package engine keeps the reconciled chat list and open chat projections.
package engine

import "chat-sync/internal/models"

// ChatListState is a snapshot of the signed-in user's chats. Snapshots
// delivered by SubscribeChatList share memory with the engine and must be
// treated as read-only; ChatList returns a private copy.
type ChatListState struct {
	Chats []models.Chat
}

// Chat returns the chat with id from the snapshot.
func (s ChatListState) Chat(id int) (models.Chat, bool) {
	for _, c := range s.Chats {
		if c.ID == id {
			return c, true
		}
	}
	return models.Chat{}, false
}

// ChatState is a snapshot of the open chat. ChatID is zero when no chat is
// open. Messages are newest first. Closed is set once the local user has left,
// been removed or the chat was deleted. Like ChatListState, subscription
// snapshots are read-only and OpenChatState returns a private copy.
type ChatState struct {
	ChatID     int
	Chat       *models.Chat
	Messages   []models.Message
	EndReached bool
	Loading    bool
	Closed     bool
}

// Clone returns a copy that shares no mutable memory with s.
func (s ChatListState) Clone() ChatListState {
	if s.Chats == nil {
		return s
	}
	chats := make([]models.Chat, len(s.Chats))
	for i, c := range s.Chats {
		chats[i] = cloneChat(c)
	}
	return ChatListState{Chats: chats}
}

// Clone returns a copy that shares no mutable memory with s.
func (s ChatState) Clone() ChatState {
	out := s
	if s.Chat != nil {
		chat := cloneChat(*s.Chat)
		out.Chat = &chat
	}
	if s.Messages != nil {
		out.Messages = make([]models.Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = cloneMessage(m)
		}
	}
	return out
}

func cloneChat(c models.Chat) models.Chat {
	if c.Picture != nil {
		picture := *c.Picture
		c.Picture = &picture
	}
	if c.Participants != nil {
		c.Participants = append([]models.ChatParticipant(nil), c.Participants...)
		for i, p := range c.Participants {
			if p.User.Picture != nil {
				picture := *p.User.Picture
				c.Participants[i].User.Picture = &picture
			}
		}
	}
	if c.LastMessage != nil {
		last := cloneMessage(*c.LastMessage)
		c.LastMessage = &last
	}
	return c
}

func cloneMessage(m models.Message) models.Message {
	if m.Text != nil {
		text := *m.Text
		m.Text = &text
	}
	if m.Pictures != nil {
		m.Pictures = append([]string(nil), m.Pictures...)
	}
	if m.UsersSeenMessage != nil {
		m.UsersSeenMessage = append([]int(nil), m.UsersSeenMessage...)
	}
	if m.UpdatedAt != nil {
		updated := *m.UpdatedAt
		m.UpdatedAt = &updated
	}
	return m
}

func (s ChatState) IsOpen() bool { return s.ChatID != 0 }

// Message returns the message with id from the snapshot.
func (s ChatState) Message(id int) (models.Message, bool) {
	if i := indexOfMessage(s.Messages, id); i >= 0 {
		return s.Messages[i], true
	}
	return models.Message{}, false
}

type NotificationKind string

const (
	NotifyNewMessage     NotificationKind = "new_message"
	NotifyChatDeleted    NotificationKind = "chat_deleted"
	NotifyLeftChat       NotificationKind = "left_chat"
	NotifyKickedFromChat NotificationKind = "kicked_from_chat"
)

// Notification is a one-shot, user-visible signal. Unlike snapshots,
// notifications are never conflated.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	ChatID    int              `json:"chatId"`
	MessageID int              `json:"messageId,omitempty"`
	UserID    int              `json:"userId,omitempty"`
}

// NavigateAway reports whether the UI should leave the open chat.
func (n Notification) NavigateAway() bool {
	return n.Kind != NotifyNewMessage
}

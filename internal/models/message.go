package models

import "time"

// MessageType distinguishes user messages from system notices.
type MessageType string

const (
	MessageTypeMessage            MessageType = "MESSAGE"
	MessageTypeChatCreated        MessageType = "CHAT_CREATED"
	MessageTypeChatUpdated        MessageType = "CHAT_UPDATED"
	MessageTypeParticipantAdded   MessageType = "PARTICIPANT_ADDED"
	MessageTypeParticipantDeleted MessageType = "PARTICIPANT_DELETED"
	MessageTypeParticipantLeft    MessageType = "PARTICIPANT_LEFT"
	MessageTypeAdminAssigned      MessageType = "ADMIN_ASSIGNED"
	MessageTypeAdminRemoved       MessageType = "ADMIN_REMOVED"
)

// Message is a chat message as echoed by the server.
type Message struct {
	ID               int         `json:"id"`
	ChatID           int         `json:"chatId"`
	AuthorID         int         `json:"authorId"`
	Type             MessageType `json:"type"`
	Text             *string     `json:"text,omitempty"`
	Pictures         []string    `json:"pictures,omitempty"`
	IsRead           bool        `json:"isRead"`
	UsersSeenMessage []int       `json:"usersSeenMessage"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        *time.Time  `json:"updatedAt,omitempty"`
}

// SeenBy reports whether userID has read the message.
func (m Message) SeenBy(userID int) bool {
	for _, id := range m.UsersSeenMessage {
		if id == userID {
			return true
		}
	}
	return false
}

// NewerFirst reports whether a sorts before b in display order.
func NewerFirst(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// MergeMessage applies an incoming version of a message over the known one.
// Read state only grows, creation time never changes and the edit time never
// moves backwards.
func MergeMessage(old, incoming Message) Message {
	merged := incoming
	merged.ID = old.ID
	merged.CreatedAt = old.CreatedAt
	merged.IsRead = old.IsRead || incoming.IsRead

	seen := make([]int, 0, len(old.UsersSeenMessage)+len(incoming.UsersSeenMessage))
	seen = append(seen, old.UsersSeenMessage...)
	for _, id := range incoming.UsersSeenMessage {
		if !old.SeenBy(id) && !containsInt(seen[len(old.UsersSeenMessage):], id) {
			seen = append(seen, id)
		}
	}
	merged.UsersSeenMessage = seen

	switch {
	case old.UpdatedAt == nil:
	case incoming.UpdatedAt == nil || incoming.UpdatedAt.Before(*old.UpdatedAt):
		merged.UpdatedAt = old.UpdatedAt
	}
	return merged
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

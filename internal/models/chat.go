package models

import (
	"errors"
	"fmt"
	"sort"
)

// ChatType distinguishes one-to-one dialogs from group chats.
type ChatType string

const (
	ChatTypeDialog ChatType = "DIALOG"
	ChatTypeGroup  ChatType = "GROUP"
)

// ErrInvalidDialog is returned when a dialog does not have exactly two participants.
var ErrInvalidDialog = errors.New("dialog must have exactly two participants")

// Chat is a conversation visible to the signed-in user.
type Chat struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	Type         ChatType          `json:"type"`
	Picture      *string           `json:"picture,omitempty"`
	Participants []ChatParticipant `json:"participants"`
	LastMessage  *Message          `json:"lastMessage,omitempty"`
	UnreadCount  int               `json:"unreadCount"`
}

// Validate checks the structural invariants of a chat received from the server.
func (c Chat) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("chat id %d is not server-assigned", c.ID)
	}
	if c.UnreadCount < 0 {
		return fmt.Errorf("chat %d has negative unread count", c.ID)
	}
	if c.Type == ChatTypeDialog && len(c.Participants) != 2 {
		return fmt.Errorf("chat %d: %w", c.ID, ErrInvalidDialog)
	}
	return nil
}

// Participant returns the participant with the given user id.
func (c Chat) Participant(userID int) (ChatParticipant, bool) {
	for _, p := range c.Participants {
		if p.User.ID == userID {
			return p, true
		}
	}
	return ChatParticipant{}, false
}

// WithoutParticipant returns a copy of the chat with userID removed from its participants.
func (c Chat) WithoutParticipant(userID int) Chat {
	out := make([]ChatParticipant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.User.ID != userID {
			out = append(out, p)
		}
	}
	c.Participants = out
	return c
}

// WithParticipants returns a copy of the chat where every incoming participant
// replaces any existing entry with the same user id and is appended at the end.
func (c Chat) WithParticipants(incoming []ChatParticipant) Chat {
	out := make([]ChatParticipant, len(c.Participants))
	copy(out, c.Participants)
	for _, p := range incoming {
		kept := out[:0:0]
		for _, existing := range out {
			if existing.User.ID != p.User.ID {
				kept = append(kept, existing)
			}
		}
		out = append(kept, p)
	}
	c.Participants = out
	return c
}

// SortChats orders chats by last message time, newest first. Chats without a
// last message go last. The sort is stable.
func SortChats(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessage, chats[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}

package ws

import (
	"fmt"
	"sync/atomic"
)

// Scope identifies one subscription: the global chat list or a single chat.
type Scope struct {
	ChatID int
}

// GlobalScope carries chat-list level events.
var GlobalScope = Scope{}

// ChatScope carries message level events for one chat.
func ChatScope(chatID int) Scope {
	return Scope{ChatID: chatID}
}

func (s Scope) IsGlobal() bool { return s.ChatID == 0 }

// Kind is the metrics label for the scope.
func (s Scope) Kind() string {
	if s.IsGlobal() {
		return "chats"
	}
	return "chat"
}

// Path is the endpoint path relative to the server base URL.
func (s Scope) Path() string {
	if s.IsGlobal() {
		return "/api/v1/chats/ws"
	}
	return fmt.Sprintf("/api/v1/chats/%d/ws", s.ChatID)
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "chats"
	}
	return fmt.Sprintf("chat:%d", s.ChatID)
}

func routingKey(s Scope) string {
	if s.IsGlobal() {
		return "ws_events.chats"
	}
	return "ws_events.chat"
}

// State is the lifecycle state of a connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "disconnected"
	}
}

type atomicState struct{ v atomic.Int32 }

func (a *atomicState) Load() State   { return State(a.v.Load()) }
func (a *atomicState) Store(s State) { a.v.Store(int32(s)) }

// Frame is one raw inbound frame. A frame with Err set is terminal: the
// channel closes right after it.
type Frame struct {
	Scope Scope
	Data  string
	Err   error
}

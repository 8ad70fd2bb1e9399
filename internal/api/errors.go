package api

import (
	"errors"
	"fmt"

	"chat-sync/internal/credentials"
	"chat-sync/internal/validation"
)

var (
	// ErrNoConnection covers both an offline network monitor and transport failures.
	ErrNoConnection     = errors.New("poor network connection")
	ErrChatNotFound     = errors.New("chat not found")
	ErrNotParticipant   = errors.New("not a chat participant")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUserNotFound     = errors.New("user not found")
)

var codeErrors = map[string]error{
	"CHAT_NOT_FOUND":       ErrChatNotFound,
	"NOT_CHAT_PARTICIPANT": ErrNotParticipant,
	"FORBIDDEN":            ErrPermissionDenied,
	"USER_NOT_FOUND":       ErrUserNotFound,
}

// ServerError is a non-2xx response. Known codes unwrap to a sentinel.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

func (e *ServerError) Unwrap() error {
	if err, ok := codeErrors[e.Code]; ok {
		return err
	}
	return nil
}

type Kind int

const (
	KindUnknown Kind = iota
	KindConnectivity
	KindAuthentication
	KindServer
	KindPermission
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuthentication:
		return "authentication"
	case KindServer:
		return "server"
	case KindPermission:
		return "permission"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Classify buckets err for display.
func Classify(err error) Kind {
	var vErr *validation.Error
	var sErr *ServerError
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &vErr):
		return KindValidation
	case errors.Is(err, ErrNoConnection):
		return KindConnectivity
	case errors.Is(err, credentials.ErrUnauthorized):
		return KindAuthentication
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotParticipant):
		return KindPermission
	case errors.As(err, &sErr):
		return KindServer
	default:
		return KindUnknown
	}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	var sErr *ServerError
	switch Classify(err) {
	case KindConnectivity:
		return ErrNoConnection.Error()
	case KindAuthentication:
		return "unauthorized"
	case KindValidation:
		return err.Error()
	case KindPermission:
		if errors.As(err, &sErr) && sErr.Message != "" {
			return sErr.Message
		}
		return ErrPermissionDenied.Error()
	case KindServer:
		errors.As(err, &sErr)
		if sErr.Message != "" {
			return sErr.Message
		}
		if known := sErr.Unwrap(); known != nil {
			return known.Error()
		}
		return "server error"
	default:
		return "something went wrong"
	}
}

// ShouldLeave reports whether the UI should navigate away from the chat.
func ShouldLeave(err error) bool {
	return errors.Is(err, ErrNotParticipant) || errors.Is(err, ErrChatNotFound)
}

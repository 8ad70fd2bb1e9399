// Package validation checks user input before any command leaves the process.
package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Field names the input slot an error belongs to.
type Field string

const (
	FieldName            Field = "name"
	FieldBio             Field = "bio"
	FieldMessage         Field = "message"
	FieldUsername        Field = "username"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirm_password"
)

// Error is a field-level validation failure.
type Error struct {
	Field Field
	Code  string
}

func (e *Error) Error() string { return string(e.Field) + ": " + e.Code }

var (
	ErrNameEmpty            = &Error{Field: FieldName, Code: "name_empty"}
	ErrNameTooLong          = &Error{Field: FieldName, Code: "name_too_long"}
	ErrBioEmpty             = &Error{Field: FieldBio, Code: "bio_empty"}
	ErrBioTooLong           = &Error{Field: FieldBio, Code: "bio_too_long"}
	ErrMessageEmpty         = &Error{Field: FieldMessage, Code: "message_empty"}
	ErrMessageTooLong       = &Error{Field: FieldMessage, Code: "message_too_long"}
	ErrUsernameTooShort     = &Error{Field: FieldUsername, Code: "username_too_short"}
	ErrUsernameTooLong      = &Error{Field: FieldUsername, Code: "username_too_long"}
	ErrPasswordEmpty        = &Error{Field: FieldPassword, Code: "password_empty"}
	ErrPasswordMismatch     = &Error{Field: FieldConfirmPassword, Code: "password_mismatch"}
	ErrConfirmPasswordEmpty = &Error{Field: FieldConfirmPassword, Code: "confirm_password_empty"}
)

// Limits are the length bounds, counted in runes.
type Limits struct {
	NameMax     int `yaml:"name_max"`
	BioMax      int `yaml:"bio_max"`
	MessageMax  int `yaml:"message_max"`
	UsernameMin int `yaml:"username_min"`
	UsernameMax int `yaml:"username_max"`
}

// DefaultLimits mirrors the server's column sizes.
func DefaultLimits() Limits {
	return Limits{NameMax: 64, BioMax: 256, MessageMax: 4000, UsernameMin: 3, UsernameMax: 32}
}

func length(s string) int { return utf8.RuneCountInString(s) }

// Name validates a full name or chat name.
func (l Limits) Name(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameEmpty
	}
	if length(name) > l.NameMax {
		return ErrNameTooLong
	}
	return nil
}

// Bio validates a profile bio.
func (l Limits) Bio(bio string) error {
	bio = strings.TrimSpace(bio)
	if bio == "" {
		return ErrBioEmpty
	}
	if length(bio) > l.BioMax {
		return ErrBioTooLong
	}
	return nil
}

// Message validates message text. A message with pictures may have no text.
func (l Limits) Message(text string, pictures int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && pictures == 0 {
		return ErrMessageEmpty
	}
	if length(text) > l.MessageMax {
		return ErrMessageTooLong
	}
	return nil
}

// Username validates the username length.
func (l Limits) Username(username string) error {
	n := length(strings.TrimSpace(username))
	if n < l.UsernameMin {
		return ErrUsernameTooShort
	}
	if n > l.UsernameMax {
		return ErrUsernameTooLong
	}
	return nil
}

// Password validates a password and its confirmation.
func Password(password, confirm string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if confirm == "" {
		return ErrConfirmPasswordEmpty
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// FieldOf returns the field an error belongs to, or "" for non-validation errors.
func FieldOf(err error) Field {
	var v *Error
	if errors.As(err, &v) {
		return v.Field
	}
	return ""
}

package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Kind classifies failures surfaced by actions.
type Kind int

const (
	// KindUnknown covers unexpected faults.
	KindUnknown Kind = iota
	// KindAuthentication means no principal was present where one is required.
	KindAuthentication
	// KindAuthorization means the principal lacks rights for the operation.
	KindAuthorization
	// KindNotFound means the referenced resource is absent (or hidden).
	KindNotFound
	// KindValidation means the input was rejected before contacting the database.
	KindValidation
	// KindRemote means the database call itself failed.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Error is a classified failure carrying a message safe to show users.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthenticated builds an authentication error.
func Unauthenticated(message string) error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Forbidden builds an authorization error.
func Forbidden(message string) error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFound builds a not-found error.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message, Err: ErrNotFound}
}

// Invalid builds a field-level validation error.
func Invalid(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Remote wraps a database failure with a user facing message.
func Remote(err error, message string) error {
	return &Error{Kind: KindRemote, Message: message, Err: err}
}

// KindOf reports the classification of err, KindUnknown when unclassified.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindUnknown
}

// UserSafeMessage extracts a message suitable for direct display.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	if errors.Is(err, ErrNotFound) {
		return "Not found"
	}
	return "Something went wrong. Please try again."
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Authentication gate failures. MissingCredential means no token was
	// supplied at all; MalformedToken covers unparseable, tampered and
	// expired tokens alike so the response leaks nothing about which.
	ErrMissingCredential = fmt.Errorf("missing credential")
	ErrMalformedToken    = fmt.Errorf("malformed or expired token")
	ErrUnknownSubject    = fmt.Errorf("unknown subject")

	ErrInvalidPassword      = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials   = fmt.Errorf("invalid email or password")
	ErrUserAlreadyExists    = fmt.Errorf("user already exists")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrNotParticipant       = fmt.Errorf("user is not a participant of the conversation")
	ErrNotMessageSender     = fmt.Errorf("only the sender can delete a message")
	ErrEmptyContent         = fmt.Errorf("message content is empty")
	ErrConnectionClosed     = fmt.Errorf("connection closed")
	ErrUnsupportedFileType  = fmt.Errorf("unsupported file type")
)

// MapToHTTPStatus translates domain sentinels into transport status codes.
// Anything unlisted is a 500: unknown failures must not masquerade as
// client errors.
func MapToHTTPStatus(err error) int {
	switch {
	case matches(err, ErrMissingCredential, ErrMalformedToken, ErrUnknownSubject, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case matches(err, ErrNotParticipant, ErrNotMessageSender):
		return http.StatusForbidden
	case matches(err, ErrUserNotFound, ErrConversationNotFound, ErrMessageNotFound):
		return http.StatusNotFound
	case matches(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case matches(err, ErrInvalidPassword, ErrEmptyContent, ErrUnsupportedFileType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func matches(err error, sentinels ...error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

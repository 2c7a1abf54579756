// Package event defines the domain events fed into the dispatch pipeline
// and the wire envelopes pushed to clients. Events are immutable values:
// they are created by a business operation, dispatched once, and
// discarded. Every variant carries the identifiers needed to compute its
// delivery address without touching storage.
package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the tagged union of everything the dispatch pipeline
// understands. The dispatcher matches variants exhaustively, so adding a
// kind here surfaces as a compile-time gap rather than a silently missed
// listener.
type DomainEvent interface {
	ConversationID() uuid.UUID
}

type NewMessage struct {
	Conversation uuid.UUID
	MessageID    uuid.UUID
	SenderID     uuid.UUID
	SenderName   string
	Content      string
	SentAt       time.Time
}

func (e NewMessage) ConversationID() uuid.UUID { return e.Conversation }

// Member is the participant snapshot embedded in ConversationUpdated.
// The list is captured when the event is built; a membership change
// racing with delivery is accepted (the removed participant may still
// receive this one event).
type Member struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

type ConversationUpdated struct {
	Conversation uuid.UUID
	UpdatedAt    time.Time
	Participants []Member
}

func (e ConversationUpdated) ConversationID() uuid.UUID { return e.Conversation }

type MessageDeleted struct {
	Conversation uuid.UUID
	MessageID    uuid.UUID
}

func (e MessageDeleted) ConversationID() uuid.UUID { return e.Conversation }

type TypingChanged struct {
	Conversation uuid.UUID
	UserID       uuid.UUID
	IsTyping     bool
}

func (e TypingChanged) ConversationID() uuid.UUID { return e.Conversation }

type UserStatusChanged struct {
	Conversation uuid.UUID
	UserID       uuid.UUID
	Online       bool
}

func (e UserStatusChanged) ConversationID() uuid.UUID { return e.Conversation }

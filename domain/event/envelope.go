package event

import (
	"time"

	"github.com/google/uuid"
)

// Type is the wire-level discriminator of an envelope.
type Type string

const (
	TypeNewMessage         Type = "NEW_MESSAGE"
	TypeConversationUpdate Type = "CONVERSATION_UPDATE"
	TypeDeleteMessage      Type = "DELETE_MESSAGE"
	TypeTypingStart        Type = "TYPING_START"
	TypeTypingStop         Type = "TYPING_STOP"
	TypeUserStatus         Type = "USER_STATUS"
)

// Envelope is the wire-ready wrapper pushed to clients. It is produced
// once per domain event and is safe to hand to any number of concurrent
// delivery attempts: the payload is never mutated after construction.
type Envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

type MessagePayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
}

type ParticipantPayload struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

type ConversationPayload struct {
	ID           uuid.UUID            `json:"id"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Participants []ParticipantPayload `json:"participants"`
}

type DeleteMessagePayload struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

type UserStatusPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	Online         bool      `json:"online"`
}

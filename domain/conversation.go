package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
}

// Participant links a user to a conversation. Email and Name are
// denormalized so events built from a conversation never need a second
// lookup to compute their delivery targets.
type Participant struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Email    string
	Name     string
	JoinedAt time.Time
	LeftAt   *time.Time
}

// HasParticipant reports whether userID is a current (not left)
// participant.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			return true
		}
	}
	return false
}

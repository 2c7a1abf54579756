package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record owned by the user store. The PasswordHash is
// an encoded argon2id string and never leaves the repository layer.
type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	ProfilePicture string
	CreatedAt      time.Time
}

// Identity is the trusted subject of a validated credential. It is
// resolved once per request by the authentication gate and never mutated
// afterwards.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
}

package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AddressKind discriminates the two delivery scopes exposed to clients:
// a broadcast channel per conversation, and a private channel per
// authenticated identity.
type AddressKind int

const (
	ConversationScope AddressKind = iota
	IdentityScope
)

// Address is a logical delivery target. It is a small comparable value so
// it can key registry maps directly.
type Address struct {
	Kind AddressKind
	ID   uuid.UUID
}

func ConversationAddress(conversationID uuid.UUID) Address {
	return Address{Kind: ConversationScope, ID: conversationID}
}

func IdentityAddress(userID uuid.UUID) Address {
	return Address{Kind: IdentityScope, ID: userID}
}

func (a Address) String() string {
	if a.Kind == IdentityScope {
		return fmt.Sprintf("user:%s", a.ID)
	}
	return fmt.Sprintf("conversation:%s", a.ID)
}

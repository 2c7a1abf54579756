package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

func newConversation(userIDs ...uuid.UUID) domain.Conversation {
	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, id := range userIDs {
		conversation.Participants = append(conversation.Participants, domain.Participant{
			ID:       uuid.New(),
			UserID:   id,
			JoinedAt: now,
		})
	}
	return conversation
}

func TestConversationRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	conversation := newConversation(alice, bob)

	req.NoError(repo.CreateConversation(conversation))

	fetched, err := repo.GetConversation(conversation.ID)
	req.NoError(err)
	req.Equal(conversation.ID, fetched.ID)
	req.Len(fetched.Participants, 2)
	req.True(fetched.HasParticipant(alice))
	req.True(fetched.HasParticipant(bob))
}

func TestConversationRepository_Unknown(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db)

	_, err := repo.GetConversation(uuid.New())
	req.ErrorIs(err, errors.ErrConversationNotFound)

	req.ErrorIs(repo.UpdateConversation(newConversation(uuid.New())), errors.ErrConversationNotFound)
}

func TestConversationRepository_ListForUser(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	clara := uuid.New()

	shared := newConversation(alice, bob)
	aliceOnly := newConversation(alice, clara)
	othersOnly := newConversation(bob, clara)

	req.NoError(repo.CreateConversation(shared))
	req.NoError(repo.CreateConversation(aliceOnly))
	req.NoError(repo.CreateConversation(othersOnly))

	conversations, err := repo.GetConversationsForUser(alice)
	req.NoError(err)
	req.Len(conversations, 2)

	ids := lo.Map(conversations, func(c domain.Conversation, _ int) uuid.UUID { return c.ID })
	req.ElementsMatch([]uuid.UUID{shared.ID, aliceOnly.ID}, ids)
}

func TestConversationRepository_LeavingDropsMembership(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	conversation := newConversation(alice, bob)
	req.NoError(repo.CreateConversation(conversation))

	// Bob leaves
	conversation.Participants[1].LeftAt = lo.ToPtr(time.Now().UTC())
	conversation.UpdatedAt = time.Now().UTC()
	req.NoError(repo.UpdateConversation(conversation))

	fetched, err := repo.GetConversation(conversation.ID)
	req.NoError(err)
	req.True(fetched.HasParticipant(alice))
	req.False(fetched.HasParticipant(bob))

	// The conversation no longer shows up for Bob
	conversations, err := repo.GetConversationsForUser(bob)
	req.NoError(err)
	req.Empty(conversations)
}

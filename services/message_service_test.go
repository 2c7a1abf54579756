package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

func setupConversation(t *testing.T, f *fixture) (domain.User, domain.User, uuid.UUID) {
	t.Helper()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	conversation, err := f.conversations.CreateConversation(alice.Identity(), []uuid.UUID{bob.ID})
	require.NoError(t, err)
	return alice, bob, conversation.ID
}

func TestMessageService_Send_PersistsAndPublishes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, _, conversationID := setupConversation(t, f)

	message, err := f.messages.SendMessage(conversationID, alice.Identity(), "  hello bob  ")
	req.NoError(err)
	req.Equal("hello bob", message.Content)
	req.Equal(alice.ID, message.SenderID)

	// Readable through history
	history, _, err := f.messages.GetMessages(conversationID, alice.ID, nil)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(message.ID, history[0].ID)

	// Published after the conversation update from setup
	events := f.bus.published()
	posted, ok := events[len(events)-1].(event.NewMessage)
	req.True(ok)
	req.Equal(message.ID, posted.MessageID)
	req.Equal("hello bob", posted.Content)
}

func TestMessageService_Send_RequiresMembership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, _, conversationID := setupConversation(t, f)
	eve := f.signup(t, "Eve", "eve@example.com")

	_, err := f.messages.SendMessage(conversationID, eve.Identity(), "let me in")
	req.ErrorIs(err, errors.ErrNotParticipant)

	_, _, err = f.messages.GetMessages(conversationID, eve.ID, nil)
	req.ErrorIs(err, errors.ErrNotParticipant)
}

func TestMessageService_Send_RejectsEmptyContent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, _, conversationID := setupConversation(t, f)

	_, err := f.messages.SendMessage(conversationID, alice.Identity(), "   ")
	req.ErrorIs(err, errors.ErrEmptyContent)
}

func TestMessageService_Delete_OnlyBySender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob, conversationID := setupConversation(t, f)

	message, err := f.messages.SendMessage(conversationID, alice.Identity(), "my message")
	req.NoError(err)

	// Another participant cannot delete it
	err = f.messages.DeleteMessage(conversationID, message.ID, bob.ID)
	req.ErrorIs(err, errors.ErrNotMessageSender)

	// The sender can
	req.NoError(f.messages.DeleteMessage(conversationID, message.ID, alice.ID))

	history, _, err := f.messages.GetMessages(conversationID, alice.ID, nil)
	req.NoError(err)
	req.Empty(history)

	events := f.bus.published()
	deleted, ok := events[len(events)-1].(event.MessageDeleted)
	req.True(ok)
	req.Equal(message.ID, deleted.MessageID)
}

func TestMessageService_Search(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob, conversationID := setupConversation(t, f)

	_, err := f.messages.SendMessage(conversationID, alice.Identity(), "quarterly planning session")
	req.NoError(err)
	_, err = f.messages.SendMessage(conversationID, bob.Identity(), "lunch at noon?")
	req.NoError(err)

	results, err := f.messages.SearchMessages(context.Background(), conversationID, alice.ID, "planning")
	req.NoError(err)
	req.Len(results, 1)
	req.Equal("quarterly planning session", results[0].Content)

	// Search is gated by membership too
	eve := f.signup(t, "Eve", "eve@example.com")
	_, err = f.messages.SearchMessages(context.Background(), conversationID, eve.ID, "planning")
	req.ErrorIs(err, errors.ErrNotParticipant)
}

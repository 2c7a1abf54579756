package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/repositories"
)

type IConversationService interface {
	CreateConversation(creator domain.Identity, participantIDs []uuid.UUID) (domain.Conversation, error)
	GetConversation(conversationID, requesterID uuid.UUID) (domain.Conversation, error)
	GetConversationsForUser(userID uuid.UUID) ([]domain.Conversation, error)
	AddParticipant(conversationID, requesterID, userID uuid.UUID) (domain.Conversation, error)
	LeaveConversation(conversationID, userID uuid.UUID) (domain.Conversation, error)
	IsParticipant(conversationID, userID uuid.UUID) (bool, error)
}

type ConversationService struct {
	conversations repositories.IConversationRepository
	users         repositories.IUserRepository
	bus           contract.IBus
}

func NewConversationService(conversations repositories.IConversationRepository,
	users repositories.IUserRepository, bus contract.IBus) *ConversationService {
	return &ConversationService{conversations: conversations, users: users, bus: bus}
}

// CreateConversation persists a conversation holding the creator and the
// given users, then notifies every participant on their personal address.
func (s *ConversationService) CreateConversation(creator domain.Identity, participantIDs []uuid.UUID) (domain.Conversation, error) {
	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	seen := map[uuid.UUID]struct{}{}
	for _, userID := range append([]uuid.UUID{creator.UserID}, participantIDs...) {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		user, err := s.users.GetUserByID(userID)
		if err != nil {
			return domain.Conversation{}, err
		}
		conversation.Participants = append(conversation.Participants, domain.Participant{
			ID:       uuid.New(),
			UserID:   user.ID,
			Email:    user.Email,
			Name:     user.Name,
			JoinedAt: now,
		})
	}

	if err := s.conversations.CreateConversation(conversation); err != nil {
		return domain.Conversation{}, err
	}

	s.publishUpdate(conversation)
	return conversation, nil
}

func (s *ConversationService) GetConversation(conversationID, requesterID uuid.UUID) (domain.Conversation, error) {
	conversation, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conversation.HasParticipant(requesterID) {
		return domain.Conversation{}, errors.ErrNotParticipant
	}
	return conversation, nil
}

func (s *ConversationService) GetConversationsForUser(userID uuid.UUID) ([]domain.Conversation, error) {
	return s.conversations.GetConversationsForUser(userID)
}

func (s *ConversationService) AddParticipant(conversationID, requesterID, userID uuid.UUID) (domain.Conversation, error) {
	conversation, err := s.GetConversation(conversationID, requesterID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if conversation.HasParticipant(userID) {
		return conversation, nil
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return domain.Conversation{}, err
	}

	conversation.Participants = append(conversation.Participants, domain.Participant{
		ID:       uuid.New(),
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		JoinedAt: time.Now().UTC(),
	})
	conversation.UpdatedAt = time.Now().UTC()

	if err := s.conversations.UpdateConversation(conversation); err != nil {
		return domain.Conversation{}, err
	}

	s.publishUpdate(conversation)
	return conversation, nil
}

func (s *ConversationService) LeaveConversation(conversationID, userID uuid.UUID) (domain.Conversation, error) {
	conversation, err := s.GetConversation(conversationID, userID)
	if err != nil {
		return domain.Conversation{}, err
	}

	now := time.Now().UTC()
	for i, p := range conversation.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			conversation.Participants[i].LeftAt = &now
		}
	}
	conversation.UpdatedAt = now

	if err := s.conversations.UpdateConversation(conversation); err != nil {
		return domain.Conversation{}, err
	}

	s.publishUpdate(conversation)
	return conversation, nil
}

// IsParticipant answers membership checks without exposing the record.
func (s *ConversationService) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	conversation, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return false, err
	}
	return conversation.HasParticipant(userID), nil
}

// publishUpdate targets every participant still in the conversation, plus
// the ones who just left so their client can drop it from the list.
func (s *ConversationService) publishUpdate(conversation domain.Conversation) {
	s.bus.Publish(event.ConversationUpdated{
		Conversation: conversation.ID,
		UpdatedAt:    conversation.UpdatedAt,
		Participants: lo.Map(conversation.Participants, func(p domain.Participant, _ int) event.Member {
			return event.Member{UserID: p.UserID, Name: p.Name, Email: p.Email}
		}),
	})
}

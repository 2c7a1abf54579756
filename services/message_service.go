package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/repositories"
)

type IMessageService interface {
	SendMessage(conversationID uuid.UUID, sender domain.Identity, content string) (domain.Message, error)
	DeleteMessage(conversationID, messageID, requesterID uuid.UUID) error
	GetMessages(conversationID, requesterID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	SearchMessages(ctx context.Context, conversationID, requesterID uuid.UUID, query string) ([]domain.Message, error)
}

type MessageService struct {
	messages   repositories.IMessageRepository
	search     repositories.ISearchRepository
	membership contract.IMembership
	bus        contract.IBus
	log        *slog.Logger
}

func NewMessageService(messages repositories.IMessageRepository, search repositories.ISearchRepository,
	membership contract.IMembership, bus contract.IBus, log *slog.Logger) *MessageService {
	return &MessageService{
		messages:   messages,
		search:     search,
		membership: membership,
		bus:        bus,
		log:        log,
	}
}

// SendMessage persists and indexes the message, then hands it to the event
// pipeline. Persisting comes first: a message is never announced before it
// can be fetched.
func (s *MessageService) SendMessage(conversationID uuid.UUID, sender domain.Identity, content string) (domain.Message, error) {
	if err := s.requireParticipant(conversationID, sender.UserID); err != nil {
		return domain.Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.UserID,
		SenderName:     sender.Name,
		Content:        content,
		SentAt:         time.Now().UTC(),
	}

	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}
	if err := s.search.IndexMessage(repositories.SearchableMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Content:        message.Content,
	}); err != nil {
		// The message is stored, a missing index entry only degrades search
		s.log.Warn("Failed to index message", "message", message.ID, "error", err)
	}

	s.bus.Publish(event.NewMessage{
		Conversation: message.ConversationID,
		MessageID:    message.ID,
		SenderID:     message.SenderID,
		SenderName:   message.SenderName,
		Content:      message.Content,
		SentAt:       message.SentAt,
	})
	return message, nil
}

// DeleteMessage removes the message if the requester authored it.
func (s *MessageService) DeleteMessage(conversationID, messageID, requesterID uuid.UUID) error {
	if err := s.requireParticipant(conversationID, requesterID); err != nil {
		return err
	}

	message, err := s.messages.GetMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return errors.ErrNotMessageSender
	}

	if err := s.messages.DeleteMessage(conversationID, messageID); err != nil {
		return err
	}
	if err := s.search.DeleteMessage(messageID); err != nil {
		s.log.Warn("Failed to deindex message", "message", messageID, "error", err)
	}

	s.bus.Publish(event.MessageDeleted{
		Conversation: conversationID,
		MessageID:    messageID,
	})
	return nil
}

func (s *MessageService) GetMessages(conversationID, requesterID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	if err := s.requireParticipant(conversationID, requesterID); err != nil {
		return nil, nil, err
	}
	return s.messages.GetMessages(conversationID, cursor)
}

// SearchMessages resolves index hits back to full records. Hits whose record
// has been deleted in the meantime are silently skipped.
func (s *MessageService) SearchMessages(ctx context.Context, conversationID, requesterID uuid.UUID, query string) ([]domain.Message, error) {
	if err := s.requireParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}

	ids, err := s.search.SearchMessages(ctx, conversationID, query)
	if err != nil {
		return nil, err
	}

	var results []domain.Message
	for _, id := range ids {
		message, err := s.messages.GetMessage(conversationID, id)
		if err != nil {
			continue
		}
		results = append(results, message)
	}
	return results, nil
}

func (s *MessageService) requireParticipant(conversationID, userID uuid.UUID) error {
	ok, err := s.membership.IsParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrNotParticipant
	}
	return nil
}

//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

type IConversationRepository interface {
	CreateConversation(conversation domain.Conversation) error
	GetConversation(id uuid.UUID) (domain.Conversation, error)
	UpdateConversation(conversation domain.Conversation) error
	GetConversationsForUser(userID uuid.UUID) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

type diskParticipant struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	JoinedAt int64     `json:"joined_at"`
	LeftAt   *int64    `json:"left_at,omitempty"`
}

type diskConversation struct {
	ID           uuid.UUID         `json:"id"`
	CreatedAt    int64             `json:"created_at"`
	UpdatedAt    int64             `json:"updated_at"`
	Participants []diskParticipant `json:"participants"`
}

func conversationKey(id uuid.UUID) []byte { return []byte("conv:" + id.String()) }

// userConversationKey indexes membership: the presence of the key means
// the user belongs to the conversation.
func userConversationKey(userID, conversationID uuid.UUID) []byte {
	return []byte("uconv:" + userID.String() + ":" + conversationID.String())
}

// CreateConversation stores the record and one membership index entry per
// participant, all in a single transaction.
func (c *ConversationRepository) CreateConversation(conversation domain.Conversation) error {
	data, err := json.Marshal(fromConversation(conversation))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), data); err != nil {
			return err
		}
		for _, p := range conversation.Participants {
			if err := txn.Set(userConversationKey(p.UserID, conversation.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *ConversationRepository) GetConversation(id uuid.UUID) (domain.Conversation, error) {
	var stored diskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(stored), nil
}

// UpdateConversation rewrites the record and reconciles the membership
// index: entries appear for joined participants and disappear for left ones.
func (c *ConversationRepository) UpdateConversation(conversation domain.Conversation) error {
	data, err := json.Marshal(fromConversation(conversation))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(conversationKey(conversation.ID)); err != nil {
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrConversationNotFound
			}
			return err
		}
		if err := txn.Set(conversationKey(conversation.ID), data); err != nil {
			return err
		}
		for _, p := range conversation.Participants {
			key := userConversationKey(p.UserID, conversation.ID)
			if p.LeftAt != nil {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversationsForUser scans the membership index of the user and loads
// each conversation it points to.
func (c *ConversationRepository) GetConversationsForUser(userID uuid.UUID) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte("uconv:" + userID.String() + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rawID := it.Item().Key()[len(prefix):]
			conversationID, err := uuid.Parse(string(rawID))
			if err != nil {
				return err
			}

			item, err := txn.Get(conversationKey(conversationID))
			if err != nil {
				// Index entry without a record, skip it
				if goerrors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			var stored diskConversation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			conversations = append(conversations, toConversation(stored))
		}
		return nil
	})
	return conversations, err
}

func fromConversation(conversation domain.Conversation) diskConversation {
	return diskConversation{
		ID:        conversation.ID,
		CreatedAt: conversation.CreatedAt.UnixNano(),
		UpdatedAt: conversation.UpdatedAt.UnixNano(),
		Participants: lo.Map(conversation.Participants, func(p domain.Participant, _ int) diskParticipant {
			var leftAt *int64
			if p.LeftAt != nil {
				leftAt = lo.ToPtr(p.LeftAt.UnixNano())
			}
			return diskParticipant{
				ID:       p.ID,
				UserID:   p.UserID,
				Email:    p.Email,
				Name:     p.Name,
				JoinedAt: p.JoinedAt.UnixNano(),
				LeftAt:   leftAt,
			}
		}),
	}
}

func toConversation(stored diskConversation) domain.Conversation {
	return domain.Conversation{
		ID:        stored.ID,
		CreatedAt: time.Unix(0, stored.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, stored.UpdatedAt).UTC(),
		Participants: lo.Map(stored.Participants, func(p diskParticipant, _ int) domain.Participant {
			var leftAt *time.Time
			if p.LeftAt != nil {
				leftAt = lo.ToPtr(time.Unix(0, *p.LeftAt).UTC())
			}
			return domain.Participant{
				ID:       p.ID,
				UserID:   p.UserID,
				Email:    p.Email,
				Name:     p.Name,
				JoinedAt: time.Unix(0, p.JoinedAt).UTC(),
				LeftAt:   leftAt,
			}
		}),
	}
}

//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessage(conversationID, messageID uuid.UUID) (domain.Message, error)
	DeleteMessage(conversationID, messageID uuid.UUID) error
	GetMessages(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	At             int64     `json:"at"`
}

// messageKey formats "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(conversationID uuid.UUID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

// messageIDKey indexes a message by its ID so deletion does not need the
// timestamp. The value is the primary key.
func messageIDKey(conversationID, messageID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s:%s", conversationID, messageID))
}

func (m MessageRepository) StoreMessage(message domain.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := messageKey(message.ConversationID, message.SentAt, message.ID)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ConversationID, message.ID), key)
	})
}

func (m MessageRepository) GetMessage(conversationID, messageID uuid.UUID) (domain.Message, error) {
	var stored diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(conversationID, messageID))
		if err != nil {
			return err
		}
		var primary []byte
		if err := item.Value(func(val []byte) error {
			primary = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(stored), nil
}

func (m MessageRepository) DeleteMessage(conversationID, messageID uuid.UUID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		idKey := messageIDKey(conversationID, messageID)
		item, err := txn.Get(idKey)
		if err != nil {
			return err
		}
		var primary []byte
		if err := item.Value(func(val []byte) error {
			primary = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(idKey)
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrMessageNotFound
	}
	return err
}

// GetMessages retrieves messages of a conversation using a reverse prefix
// scan, newest first. Thanks to the padded timestamp in the key the order is
// chronological without sorting. It stops once the configured limitMessages
// is reached and returns an opaque cursor for the next page.
func (m MessageRepository) GetMessages(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	var byteMessages [][]byte
	var diskMessages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range byteMessages {
		var stored diskMessage
		if err = json.Unmarshal(b, &stored); err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, toMessage(stored))
	}
	return diskMessages, &lastKey, err
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		SenderName:     message.SenderName,
		Content:        message.Content,
		At:             message.SentAt.UnixNano(),
	}
}

func toMessage(stored diskMessage) domain.Message {
	return domain.Message{
		ID:             stored.ID,
		ConversationID: stored.ConversationID,
		SenderID:       stored.SenderID,
		SenderName:     stored.SenderName,
		Content:        stored.Content,
		SentAt:         time.Unix(0, stored.At).UTC(),
	}
}

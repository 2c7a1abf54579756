//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type ISearchRepository interface {
	IndexMessage(message SearchableMessage) error
	DeleteMessage(messageID uuid.UUID) error
	SearchMessages(ctx context.Context, conversationID uuid.UUID, query string) ([]uuid.UUID, error)
}

// SearchRepository maintains a full-text index of message contents next to
// the primary store. It returns message IDs only; callers load the records
// from the message repository.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

type SearchableMessage struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Content        string
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, limit int) *SearchRepository {
	return &SearchRepository{writer: writer, log: log, limit: limit}
}

func (s *SearchRepository) IndexMessage(message SearchableMessage) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("conversation_id", message.ConversationID.String())).
		AddField(bluge.NewTextField("content", message.Content))
	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchRepository) DeleteMessage(messageID uuid.UUID) error {
	return s.writer.Delete(bluge.Identifier(messageID.String()))
}

// SearchMessages matches the query against message contents within one
// conversation and returns the IDs of the best matches.
func (s *SearchRepository) SearchMessages(ctx context.Context, conversationID uuid.UUID, query string) ([]uuid.UUID, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationID.String()).SetField("conversation_id")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(s.limit, q))
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

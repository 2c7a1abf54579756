package workers

import (
	"context"
	"hash/fnv"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/moderation"
)

// CensorWorker sits between the bus and the dispatch pool. It rewrites the
// content of new-message events through the moderator and forwards every
// event to one of the dispatch lanes, chosen by conversation so that events
// of the same conversation always travel the same lane in order.
type CensorWorker struct {
	moderator moderation.Moderator
	in        chan event.DomainEvent
	lanes     []chan event.DomainEvent
	log       *slog.Logger
}

func NewCensorWorker(moderator moderation.Moderator, in chan event.DomainEvent,
	lanes []chan event.DomainEvent, log *slog.Logger) *CensorWorker {
	return &CensorWorker{moderator: moderator, in: in, lanes: lanes, log: log}
}

func (w *CensorWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.in:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			e = w.sanitize(e)
			lane := w.lanes[laneIndex(e, len(w.lanes))]
			select {
			case <-ctx.Done():
				w.log.Debug("Stopping worker")
				return ctx.Err()
			case lane <- e:
			}
		}
	}
}

func (w *CensorWorker) sanitize(e event.DomainEvent) event.DomainEvent {
	msg, ok := e.(event.NewMessage)
	if !ok {
		return e
	}

	censored, foundWords := w.moderator.Censor(msg.Content)
	if len(foundWords) > 0 {
		info := whatlanggo.Detect(msg.Content)
		w.log.Warn("Censored message content",
			"conversation", msg.Conversation,
			"sender", msg.SenderID,
			"words", len(foundWords),
			"lang", info.Lang.Iso6391())
		msg.Content = censored
	}
	return msg
}

func laneIndex(e event.DomainEvent, lanes int) int {
	id := e.ConversationID()
	h := fnv.New32a()
	h.Write(id[:])
	return int(h.Sum32() % uint32(lanes))
}

package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

// DispatchWorker drains one lane of domain events, translates each into a
// wire envelope and the addresses it targets, and hands it to the registry.
//
// Events of one conversation always arrive on the same lane, so processing
// them sequentially here keeps per-conversation delivery ordered.
type DispatchWorker struct {
	registry contract.IRegistry
	lane     chan event.DomainEvent
	monitor  *observability.Monitor
	log      *slog.Logger
}

func NewDispatchWorker(registry contract.IRegistry, lane chan event.DomainEvent,
	monitor *observability.Monitor, log *slog.Logger) *DispatchWorker {
	return &DispatchWorker{registry: registry, lane: lane, monitor: monitor, log: log}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.lane:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.dispatch(ctx, e)
		}
	}
}

func (w *DispatchWorker) dispatch(ctx context.Context, e event.DomainEvent) {
	env, addrs, err := route(e)
	if err != nil {
		w.monitor.IncrDiscarded()
		w.log.Error("Discarding event", "error", err)
		return
	}

	for _, addr := range addrs {
		w.registry.Deliver(ctx, addr, env)
	}
}

// route maps a domain event to its wire envelope and target addresses.
// Conversation-scoped events go to the conversation address; conversation
// updates fan out to the personal address of every participant.
func route(e event.DomainEvent) (event.Envelope, []domain.Address, error) {
	if e.ConversationID() == uuid.Nil {
		return event.Envelope{}, nil, fmt.Errorf("event %T without conversation", e)
	}

	switch evt := e.(type) {
	case event.NewMessage:
		env := event.Envelope{
			Type: event.TypeNewMessage,
			Payload: event.MessagePayload{
				ID:             evt.MessageID,
				ConversationID: evt.Conversation,
				SenderID:       evt.SenderID,
				SenderName:     evt.SenderName,
				Content:        evt.Content,
				SentAt:         evt.SentAt,
			},
		}
		return env, []domain.Address{domain.ConversationAddress(evt.Conversation)}, nil

	case event.ConversationUpdated:
		env := event.Envelope{
			Type: event.TypeConversationUpdate,
			Payload: event.ConversationPayload{
				ID:        evt.Conversation,
				UpdatedAt: evt.UpdatedAt,
				Participants: lo.Map(evt.Participants, func(m event.Member, _ int) event.ParticipantPayload {
					return event.ParticipantPayload{UserID: m.UserID, Name: m.Name, Email: m.Email}
				}),
			},
		}
		addrs := lo.Map(evt.Participants, func(m event.Member, _ int) domain.Address {
			return domain.IdentityAddress(m.UserID)
		})
		return env, addrs, nil

	case event.MessageDeleted:
		env := event.Envelope{
			Type: event.TypeDeleteMessage,
			Payload: event.DeleteMessagePayload{
				MessageID:      evt.MessageID,
				ConversationID: evt.Conversation,
			},
		}
		return env, []domain.Address{domain.ConversationAddress(evt.Conversation)}, nil

	case event.TypingChanged:
		typ := event.TypeTypingStop
		if evt.IsTyping {
			typ = event.TypeTypingStart
		}
		env := event.Envelope{
			Type: typ,
			Payload: event.TypingPayload{
				ConversationID: evt.Conversation,
				UserID:         evt.UserID,
			},
		}
		return env, []domain.Address{domain.ConversationAddress(evt.Conversation)}, nil

	case event.UserStatusChanged:
		env := event.Envelope{
			Type: event.TypeUserStatus,
			Payload: event.UserStatusPayload{
				ConversationID: evt.Conversation,
				UserID:         evt.UserID,
				Online:         evt.Online,
			},
		}
		return env, []domain.Address{domain.ConversationAddress(evt.Conversation)}, nil

	default:
		return event.Envelope{}, nil, fmt.Errorf("unknown event variant %T", e)
	}
}

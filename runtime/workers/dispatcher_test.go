package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

type delivery struct {
	addr domain.Address
	env  event.Envelope
}

// recordingRegistry captures Deliver calls instead of reaching real connections.
type recordingRegistry struct {
	deliveries []delivery
}

func (r *recordingRegistry) Subscribe(contract.Connection, domain.Address) bool   { return false }
func (r *recordingRegistry) Unsubscribe(contract.Connection, domain.Address) bool { return false }
func (r *recordingRegistry) RemoveConnection(contract.Connection) []domain.Address {
	return nil
}

func (r *recordingRegistry) Deliver(_ context.Context, addr domain.Address, env event.Envelope) {
	r.deliveries = append(r.deliveries, delivery{addr: addr, env: env})
}

func newDispatchHarness(t *testing.T) (*recordingRegistry, *DispatchWorker, chan event.DomainEvent) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := &recordingRegistry{}
	lane := make(chan event.DomainEvent, 16)
	worker := NewDispatchWorker(registry, lane, observability.NewMonitor(log), log)
	return registry, worker, lane
}

func runOnce(t *testing.T, worker *DispatchWorker, lane chan event.DomainEvent, evts ...event.DomainEvent) {
	t.Helper()
	for _, e := range evts {
		lane <- e
	}
	close(lane)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch worker did not drain its lane")
	}
}

func TestDispatchWorker_NewMessage_TargetsConversation(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	conversationID := uuid.New()
	messageID := uuid.New()
	senderID := uuid.New()
	sentAt := time.Now().UTC()

	runOnce(t, worker, lane, event.NewMessage{
		Conversation: conversationID,
		MessageID:    messageID,
		SenderID:     senderID,
		SenderName:   "Alice",
		Content:      "hello",
		SentAt:       sentAt,
	})

	req.Len(registry.deliveries, 1)
	d := registry.deliveries[0]
	req.Equal(domain.ConversationAddress(conversationID), d.addr)
	req.Equal(event.TypeNewMessage, d.env.Type)

	payload, ok := d.env.Payload.(event.MessagePayload)
	req.True(ok)
	req.Equal(messageID, payload.ID)
	req.Equal(conversationID, payload.ConversationID)
	req.Equal("Alice", payload.SenderName)
	req.Equal("hello", payload.Content)
}

func TestDispatchWorker_ConversationUpdated_FansOutToParticipants(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	conversationID := uuid.New()
	alice := event.Member{UserID: uuid.New(), Name: "Alice", Email: "alice@example.com"}
	bob := event.Member{UserID: uuid.New(), Name: "Bob", Email: "bob@example.com"}

	runOnce(t, worker, lane, event.ConversationUpdated{
		Conversation: conversationID,
		UpdatedAt:    time.Now().UTC(),
		Participants: []event.Member{alice, bob},
	})

	// One delivery per participant, each to their personal address
	req.Len(registry.deliveries, 2)
	req.Equal(domain.IdentityAddress(alice.UserID), registry.deliveries[0].addr)
	req.Equal(domain.IdentityAddress(bob.UserID), registry.deliveries[1].addr)

	for _, d := range registry.deliveries {
		req.Equal(event.TypeConversationUpdate, d.env.Type)
		payload, ok := d.env.Payload.(event.ConversationPayload)
		req.True(ok)
		req.Equal(conversationID, payload.ID)
		req.Len(payload.Participants, 2)
	}
}

func TestDispatchWorker_MessageDeleted_TargetsConversation(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	conversationID := uuid.New()
	messageID := uuid.New()

	runOnce(t, worker, lane, event.MessageDeleted{Conversation: conversationID, MessageID: messageID})

	req.Len(registry.deliveries, 1)
	d := registry.deliveries[0]
	req.Equal(domain.ConversationAddress(conversationID), d.addr)
	req.Equal(event.TypeDeleteMessage, d.env.Type)

	payload, ok := d.env.Payload.(event.DeleteMessagePayload)
	req.True(ok)
	req.Equal(messageID, payload.MessageID)
	req.Equal(conversationID, payload.ConversationID)
}

func TestDispatchWorker_Typing_MapsStartAndStop(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	conversationID := uuid.New()
	userID := uuid.New()

	runOnce(t, worker, lane,
		event.TypingChanged{Conversation: conversationID, UserID: userID, IsTyping: true},
		event.TypingChanged{Conversation: conversationID, UserID: userID, IsTyping: false},
	)

	req.Len(registry.deliveries, 2)
	req.Equal(event.TypeTypingStart, registry.deliveries[0].env.Type)
	req.Equal(event.TypeTypingStop, registry.deliveries[1].env.Type)

	payload, ok := registry.deliveries[0].env.Payload.(event.TypingPayload)
	req.True(ok)
	req.Equal(userID, payload.UserID)
}

func TestDispatchWorker_UserStatus_TargetsConversation(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	conversationID := uuid.New()
	userID := uuid.New()

	runOnce(t, worker, lane, event.UserStatusChanged{Conversation: conversationID, UserID: userID, Online: true})

	req.Len(registry.deliveries, 1)
	req.Equal(event.TypeUserStatus, registry.deliveries[0].env.Type)

	payload, ok := registry.deliveries[0].env.Payload.(event.UserStatusPayload)
	req.True(ok)
	req.True(payload.Online)
}

func TestDispatchWorker_DiscardsMalformedEvent(t *testing.T) {
	req := require.New(t)
	registry, worker, lane := newDispatchHarness(t)

	// An event without a conversation cannot be routed
	runOnce(t, worker, lane, event.TypingChanged{Conversation: uuid.Nil, UserID: uuid.New(), IsTyping: true})

	req.Empty(registry.deliveries)
}

package test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
	"github.com/ahmedmirza994/whatsapp-sub001/runtime"
	"github.com/ahmedmirza994/whatsapp-sub001/runtime/workers"
)

// chanSink is an in-memory push connection feeding a channel, standing
// in for a live WebSocket.
type chanSink struct {
	id       string
	identity domain.Identity
	frames   chan event.Envelope
	once     sync.Once
}

func newChanSink(name string) *chanSink {
	return &chanSink{
		id:       name,
		identity: domain.Identity{UserID: uuid.New(), Name: name},
		frames:   make(chan event.Envelope, 64),
	}
}

func (s *chanSink) Consume(ctx context.Context, env event.Envelope) error {
	select {
	case s.frames <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *chanSink) ID() string                { return s.id }
func (s *chanSink) Identity() domain.Identity { return s.identity }
func (s *chanSink) Close()                    { s.once.Do(func() { close(s.frames) }) }

func (s *chanSink) await(t *testing.T, timeout time.Duration) event.Envelope {
	t.Helper()
	select {
	case env := <-s.frames:
		return env
	case <-time.After(timeout):
		t.Fatalf("Timeout: %s received no envelope within %v", s.id, timeout)
		return event.Envelope{}
	}
}

func startPipeline(t *testing.T) (*runtime.Bus, *runtime.Registry) {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	registry := runtime.NewRegistry(time.Second, monitor, log)
	bus := runtime.NewBus(1000, monitor, log)
	orchestrator := runtime.NewOrchestrator(log, supervisor, registry, bus, monitor, 4, 1000, '*')

	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(orchestrator.Stop)

	return bus, registry
}

func Test_Scenario_MessageReachesSubscribersOnly(t *testing.T) {
	req := require.New(t)
	bus, registry := startPipeline(t)

	conversationID := uuid.New()
	listener := newChanSink("listener")
	bystander := newChanSink("bystander")
	registry.Subscribe(listener, domain.ConversationAddress(conversationID))
	registry.Subscribe(bystander, domain.ConversationAddress(uuid.New()))

	// When a message event enters the pipeline
	bus.Publish(event.NewMessage{
		Conversation: conversationID,
		MessageID:    uuid.New(),
		SenderID:     uuid.New(),
		SenderName:   "alice",
		Content:      "this message will self destruct in 5 seconds",
		SentAt:       time.Now().UTC(),
	})

	// Then only the conversation's subscriber sees it
	env := listener.await(t, 2*time.Second)
	req.Equal(event.TypeNewMessage, env.Type)
	payload, ok := env.Payload.(event.MessagePayload)
	req.True(ok)
	req.Equal("this message will self destruct in 5 seconds", payload.Content)

	select {
	case env := <-bystander.frames:
		t.Fatalf("Bystander received %s for a conversation it never joined", env.Type)
	case <-time.After(300 * time.Millisecond):
	}
}

func Test_Scenario_OrderPreservedPerConversation(t *testing.T) {
	req := require.New(t)
	bus, registry := startPipeline(t)

	conversationID := uuid.New()
	listener := newChanSink("listener")
	registry.Subscribe(listener, domain.ConversationAddress(conversationID))

	const total = 50
	for i := 0; i < total; i++ {
		bus.Publish(event.NewMessage{
			Conversation: conversationID,
			MessageID:    uuid.New(),
			SenderID:     uuid.New(),
			SenderName:   "alice",
			Content:      fmt.Sprintf("message %03d", i),
			SentAt:       time.Now().UTC(),
		})
	}

	for i := 0; i < total; i++ {
		env := listener.await(t, 2*time.Second)
		payload, ok := env.Payload.(event.MessagePayload)
		req.True(ok)
		req.Equal(fmt.Sprintf("message %03d", i), payload.Content)
	}
}

func Test_Scenario_ModerationAppliedBeforeDelivery(t *testing.T) {
	req := require.New(t)
	bus, registry := startPipeline(t)

	conversationID := uuid.New()
	listener := newChanSink("listener")
	registry.Subscribe(listener, domain.ConversationAddress(conversationID))

	// "idiot" is in the embedded english dictionary
	bus.Publish(event.NewMessage{
		Conversation: conversationID,
		MessageID:    uuid.New(),
		SenderID:     uuid.New(),
		SenderName:   "alice",
		Content:      "you are an idiot sometimes",
		SentAt:       time.Now().UTC(),
	})

	env := listener.await(t, 2*time.Second)
	payload, ok := env.Payload.(event.MessagePayload)
	req.True(ok)
	req.Equal("you are an ***** sometimes", payload.Content)
}

func Test_Scenario_TypingAndPresenceFanOut(t *testing.T) {
	req := require.New(t)
	bus, registry := startPipeline(t)

	conversationID := uuid.New()
	userID := uuid.New()
	listener := newChanSink("listener")
	registry.Subscribe(listener, domain.ConversationAddress(conversationID))

	bus.Publish(event.TypingChanged{Conversation: conversationID, UserID: userID, IsTyping: true})
	env := listener.await(t, 2*time.Second)
	req.Equal(event.TypeTypingStart, env.Type)

	bus.Publish(event.UserStatusChanged{Conversation: conversationID, UserID: userID, Online: false})
	env = listener.await(t, 2*time.Second)
	req.Equal(event.TypeUserStatus, env.Type)
	status, ok := env.Payload.(event.UserStatusPayload)
	req.True(ok)
	req.False(status.Online)
}

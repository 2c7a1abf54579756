package services

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/repositories"
)

// recordingBus captures published events instead of running the pipeline.
type recordingBus struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (b *recordingBus) Publish(e event.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) published() []event.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.DomainEvent(nil), b.events...)
}

type fixture struct {
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	bus           *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blugeWriter.Close() })

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	bus := &recordingBus{}

	userRepo := repositories.NewUserRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db, log, nil)
	searchRepo := repositories.NewSearchRepository(blugeWriter, log, 20)

	conversations := NewConversationService(conversationRepo, userRepo, bus)
	return &fixture{
		users:         NewUserService(userRepo, tokens),
		conversations: conversations,
		messages:      NewMessageService(messageRepo, searchRepo, conversations, bus, log),
		bus:           bus,
	}
}

func (f *fixture) signup(t *testing.T, name, email string) domain.User {
	t.Helper()
	user, token, err := f.users.Signup(auth.SignupRequest{
		Name:     name,
		Email:    email,
		Password: "Str0ngPassw0rd",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.String())
	return user
}

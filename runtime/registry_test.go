package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

type fakeConn struct {
	id       string
	identity domain.Identity

	mu       sync.Mutex
	received []event.Envelope
	fail     error
	closed   bool
}

func newFakeConn(userID uuid.UUID) *fakeConn {
	return &fakeConn{
		id:       uuid.NewString(),
		identity: domain.Identity{UserID: userID, Email: "someone@example.com"},
	}
}

func (c *fakeConn) Consume(_ context.Context, env event.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.received = append(c.received, env)
	return nil
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) Identity() domain.Identity { return c.identity }

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) envelopes() []event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Envelope(nil), c.received...)
}

func newTestRegistry() *Registry {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewRegistry(time.Second, observability.NewMonitor(log), log)
}

func TestRegistry_Subscribe_ReportsUserPresence(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	userID := uuid.New()
	addr := domain.ConversationAddress(uuid.New())

	conn1 := newFakeConn(userID)
	conn2 := newFakeConn(userID)

	// First connection of the user at the address brings them online
	req.True(registry.Subscribe(conn1, addr))

	// Second connection of the same user changes nothing
	req.False(registry.Subscribe(conn2, addr))

	// Re-subscribing the same connection is a no-op
	req.False(registry.Subscribe(conn1, addr))

	// Dropping one connection keeps the user online, dropping the last takes them offline
	req.False(registry.Unsubscribe(conn1, addr))
	req.True(registry.Unsubscribe(conn2, addr))

	// Unsubscribing an unknown connection is a no-op
	req.False(registry.Unsubscribe(conn1, addr))
}

func TestRegistry_Deliver_OnlyToSubscribers(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	addr1 := domain.ConversationAddress(uuid.New())
	addr2 := domain.ConversationAddress(uuid.New())

	conn1 := newFakeConn(uuid.New())
	conn2 := newFakeConn(uuid.New())
	conn3 := newFakeConn(uuid.New())

	registry.Subscribe(conn1, addr1)
	registry.Subscribe(conn2, addr1)
	registry.Subscribe(conn3, addr2)

	env := event.Envelope{Type: event.TypeNewMessage}
	registry.Deliver(context.Background(), addr1, env)

	// Both subscribers of addr1 got the envelope, the addr2 subscriber got nothing
	req.Len(conn1.envelopes(), 1)
	req.Len(conn2.envelopes(), 1)
	req.Empty(conn3.envelopes())
}

func TestRegistry_Deliver_PreservesOrder(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	addr := domain.ConversationAddress(uuid.New())
	conn := newFakeConn(uuid.New())
	registry.Subscribe(conn, addr)

	first := event.Envelope{Type: event.TypeTypingStart}
	second := event.Envelope{Type: event.TypeNewMessage}
	third := event.Envelope{Type: event.TypeTypingStop}

	registry.Deliver(context.Background(), addr, first)
	registry.Deliver(context.Background(), addr, second)
	registry.Deliver(context.Background(), addr, third)

	got := conn.envelopes()
	req.Len(got, 3)
	req.Equal(event.TypeTypingStart, got[0].Type)
	req.Equal(event.TypeNewMessage, got[1].Type)
	req.Equal(event.TypeTypingStop, got[2].Type)
}

func TestRegistry_Deliver_EvictsFailingConnection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	addr := domain.ConversationAddress(uuid.New())

	healthy := newFakeConn(uuid.New())
	broken := newFakeConn(uuid.New())
	broken.fail = errors.ErrConnectionClosed

	var evicted []domain.Address
	registry.OnEvict(func(_ contract.Connection, vacated []domain.Address) {
		evicted = vacated
	})

	registry.Subscribe(healthy, addr)
	registry.Subscribe(broken, addr)

	registry.Deliver(context.Background(), addr, event.Envelope{Type: event.TypeNewMessage})

	// The healthy connection received the envelope, the broken one was closed and evicted
	req.Len(healthy.envelopes(), 1)
	req.True(broken.closed)
	req.Equal([]domain.Address{addr}, evicted)

	// A later delivery no longer reaches the evicted connection
	registry.Deliver(context.Background(), addr, event.Envelope{Type: event.TypeNewMessage})
	req.Len(healthy.envelopes(), 2)
	req.Empty(broken.envelopes())
}

// countSubscriptions reads how many shard entries reference the connection.
// After a completed removal it must be zero: a connection left behind in a
// shard would keep receiving (and failing) deliveries forever.
func countSubscriptions(registry *Registry, conn contract.Connection) int {
	total := 0
	for _, s := range registry.shards {
		s.mu.RLock()
		for _, conns := range s.subs {
			if _, present := conns[conn.ID()]; present {
				total++
			}
		}
		s.mu.RUnlock()
	}
	return total
}

func TestRegistry_SubscribeRemoveRace_LeavesNoOrphan(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	addr := domain.ConversationAddress(uuid.New())

	// Race a subscribe against a removal of the same connection, every
	// iteration from a fresh barrier. Whatever the interleaving, a final
	// removal must leave the shards without any trace of the connection.
	for i := 0; i < 1000; i++ {
		conn := newFakeConn(uuid.New())
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			<-start
			registry.Subscribe(conn, addr)
		}()
		go func() {
			defer wg.Done()
			<-start
			registry.RemoveConnection(conn)
		}()

		close(start)
		wg.Wait()

		registry.RemoveConnection(conn)
		req.Zero(countSubscriptions(registry, conn))
	}

	// The address itself still works for a live subscriber
	survivor := newFakeConn(uuid.New())
	registry.Subscribe(survivor, addr)
	registry.Deliver(context.Background(), addr, event.Envelope{Type: event.TypeNewMessage})
	req.Len(survivor.envelopes(), 1)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()

	addrs := []domain.Address{
		domain.ConversationAddress(uuid.New()),
		domain.ConversationAddress(uuid.New()),
		domain.IdentityAddress(uuid.New()),
	}

	const workers = 8
	conns := make([]*fakeConn, workers)
	for i := range conns {
		conns[i] = newFakeConn(uuid.New())
	}

	// Subscribes, unsubscribes, removals, and deliveries all interleave;
	// the registry must neither race nor corrupt an address set.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		conn := conns[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 200; round++ {
				addr := addrs[round%len(addrs)]
				registry.Subscribe(conn, addr)
				registry.Deliver(context.Background(), addr, event.Envelope{Type: event.TypeNewMessage})
				if round%3 == 0 {
					registry.Unsubscribe(conn, addr)
				}
				if round%7 == 0 {
					registry.RemoveConnection(conn)
				}
			}
		}()
	}
	wg.Wait()

	// After removing every connection the registry is fully drained:
	// no shard entry survives and deliveries reach nobody.
	for _, conn := range conns {
		registry.RemoveConnection(conn)
		req.Zero(countSubscriptions(registry, conn))
	}
	before := make([]int, len(conns))
	for i, conn := range conns {
		before[i] = len(conn.envelopes())
	}
	for _, addr := range addrs {
		registry.Deliver(context.Background(), addr, event.Envelope{Type: event.TypeNewMessage})
	}
	for i, conn := range conns {
		req.Len(conn.envelopes(), before[i])
	}
}

func TestRegistry_RemoveConnection_ReturnsVacatedAddresses(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	userID := uuid.New()

	alone := domain.ConversationAddress(uuid.New())
	shared := domain.ConversationAddress(uuid.New())

	conn := newFakeConn(userID)
	other := newFakeConn(userID)

	registry.Subscribe(conn, alone)
	registry.Subscribe(conn, shared)
	registry.Subscribe(other, shared)

	vacated := registry.RemoveConnection(conn)

	// The user stays present at shared through the other connection
	req.Equal([]domain.Address{alone}, vacated)

	registry.Deliver(context.Background(), shared, event.Envelope{Type: event.TypeNewMessage})
	req.Len(other.envelopes(), 1)
	req.Empty(conn.envelopes())
}

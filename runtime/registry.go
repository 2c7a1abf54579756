package runtime

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

const shardCount = 32

// registryShard holds the subscriptions for a slice of the address space.
// Each shard has its own lock so that traffic on one conversation does not
// contend with traffic on another.
type registryShard struct {
	mu sync.RWMutex
	// address -> connection ID -> connection
	subs map[domain.Address]map[string]contract.Connection
	// address -> user ID -> number of live connections for that user.
	// Tracks when a user gains or loses presence at an address.
	identities map[domain.Address]map[uuid.UUID]int
}

// Registry tracks which live connections are subscribed to which addresses
// and delivers envelopes to them.
//
// Delivery to the connections of one address is sequential, preserving the
// order in which Deliver is called for that address. A connection that fails
// or exceeds the delivery timeout is closed and evicted so that one slow
// subscriber cannot stall the others indefinitely.
type Registry struct {
	shards [shardCount]*registryShard

	// reverse index: connection ID -> subscribed addresses,
	// used to tear down all subscriptions when a connection dies.
	connMu    sync.Mutex
	connAddrs map[string]map[domain.Address]struct{}

	deliveryTimeout time.Duration
	monitor         *observability.Monitor
	log             *slog.Logger

	onEvict func(conn contract.Connection, vacated []domain.Address)
}

func NewRegistry(deliveryTimeout time.Duration, monitor *observability.Monitor, log *slog.Logger) *Registry {
	r := &Registry{
		connAddrs:       make(map[string]map[domain.Address]struct{}),
		deliveryTimeout: deliveryTimeout,
		monitor:         monitor,
		log:             log,
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{
			subs:       make(map[domain.Address]map[string]contract.Connection),
			identities: make(map[domain.Address]map[uuid.UUID]int),
		}
	}
	return r
}

// OnEvict registers a callback invoked after a failing connection has been
// evicted during delivery, with the addresses its user vacated.
func (r *Registry) OnEvict(fn func(conn contract.Connection, vacated []domain.Address)) {
	r.onEvict = fn
}

func (r *Registry) shardFor(addr domain.Address) *registryShard {
	h := fnv.New32a()
	h.Write(addr.ID[:])
	h.Write([]byte{byte(addr.Kind)})
	return r.shards[h.Sum32()%shardCount]
}

// Subscribe registers the connection at the address. It reports whether the
// connection's user was previously absent from the address, i.e. whether
// this subscription brings the user online there.
func (r *Registry) Subscribe(conn contract.Connection, addr domain.Address) bool {
	r.connMu.Lock()
	set, ok := r.connAddrs[conn.ID()]
	if !ok {
		set = make(map[domain.Address]struct{})
		r.connAddrs[conn.ID()] = set
	}
	if _, dup := set[addr]; dup {
		r.connMu.Unlock()
		return false
	}
	set[addr] = struct{}{}
	r.connMu.Unlock()

	userID := conn.Identity().UserID
	s := r.shardFor(addr)
	s.mu.Lock()
	conns, ok := s.subs[addr]
	if !ok {
		conns = make(map[string]contract.Connection)
		s.subs[addr] = conns
	}
	conns[conn.ID()] = conn

	counts, ok := s.identities[addr]
	if !ok {
		counts = make(map[uuid.UUID]int)
		s.identities[addr] = counts
	}
	counts[userID]++
	first := counts[userID] == 1
	s.mu.Unlock()

	// A concurrent RemoveConnection may have torn the connection down
	// between the index update and the shard insert, missing the entry
	// we just created. Re-check ownership and roll the insert back so a
	// dead connection never lingers in a shard.
	r.connMu.Lock()
	_, owned := r.connAddrs[conn.ID()][addr]
	r.connMu.Unlock()
	if !owned {
		r.removeFromShard(conn, addr)
		return false
	}

	return first
}

// Unsubscribe removes the connection from the address. It reports whether
// this was the user's last connection there, i.e. whether the user went
// offline at the address.
func (r *Registry) Unsubscribe(conn contract.Connection, addr domain.Address) bool {
	r.connMu.Lock()
	set, ok := r.connAddrs[conn.ID()]
	if ok {
		if _, subscribed := set[addr]; !subscribed {
			ok = false
		} else {
			delete(set, addr)
			if len(set) == 0 {
				delete(r.connAddrs, conn.ID())
			}
		}
	}
	r.connMu.Unlock()
	if !ok {
		return false
	}

	return r.removeFromShard(conn, addr)
}

func (r *Registry) removeFromShard(conn contract.Connection, addr domain.Address) bool {
	userID := conn.Identity().UserID
	s := r.shardFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.subs[addr]
	if !ok {
		return false
	}
	if _, present := conns[conn.ID()]; !present {
		return false
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(s.subs, addr)
	}

	counts := s.identities[addr]
	counts[userID]--
	last := counts[userID] == 0
	if last {
		delete(counts, userID)
		if len(counts) == 0 {
			delete(s.identities, addr)
		}
	}
	return last
}

// RemoveConnection tears down every subscription held by the connection and
// returns the addresses where its user thereby went offline.
func (r *Registry) RemoveConnection(conn contract.Connection) []domain.Address {
	r.connMu.Lock()
	set := r.connAddrs[conn.ID()]
	delete(r.connAddrs, conn.ID())
	r.connMu.Unlock()

	var vacated []domain.Address
	for addr := range set {
		if r.removeFromShard(conn, addr) {
			vacated = append(vacated, addr)
		}
	}
	return vacated
}

// Deliver hands the envelope to every connection currently subscribed to the
// address. Consume calls are bounded by the delivery timeout; a connection
// that fails is closed and removed from the registry.
func (r *Registry) Deliver(ctx context.Context, addr domain.Address, env event.Envelope) {
	s := r.shardFor(addr)
	s.mu.RLock()
	targets := make([]contract.Connection, 0, len(s.subs[addr]))
	for _, conn := range s.subs[addr] {
		targets = append(targets, conn)
	}
	s.mu.RUnlock()

	for _, conn := range targets {
		cctx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
		err := conn.Consume(cctx, env)
		cancel()
		if err != nil {
			r.monitor.IncrDeliveryFailure()
			r.log.Warn("Delivery failed, evicting connection",
				"connection", conn.ID(),
				"address", addr.String(),
				"error", err)
			vacated := r.RemoveConnection(conn)
			conn.Close()
			if r.onEvict != nil {
				r.onEvict(conn, vacated)
			}
			continue
		}
		r.monitor.IncrDelivery()
	}
}

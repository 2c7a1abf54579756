//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives wire envelopes. Consume must be fast or honor ctx:
// the dispatcher bounds each delivery attempt with a timeout.
type EventSink interface {
	Consume(ctx context.Context, env event.Envelope) error
}

// Connection is one live, authenticated push connection. Close cancels
// pending sends; it must be safe to call more than once.
type Connection interface {
	EventSink
	ID() string
	Identity() domain.Identity
	Close()
}

// IRegistry is the process-wide table of live connections and their
// subscriptions. Subscribe reports whether this made the connection's
// identity present on the address (first subscription); Unsubscribe
// reports whether the identity left it entirely. RemoveConnection drops
// every subscription of the connection and returns the addresses its
// identity vacated.
type IRegistry interface {
	Subscribe(conn Connection, addr domain.Address) bool
	Unsubscribe(conn Connection, addr domain.Address) bool
	RemoveConnection(conn Connection) []domain.Address
	Deliver(ctx context.Context, addr domain.Address, env event.Envelope)
}

// IBus decouples event producers from the dispatcher. Publish never
// blocks and never fails the caller.
type IBus interface {
	Publish(e event.DomainEvent)
}

// IUserDirectory resolves a token subject to a known account. It is the
// external identity collaborator of the authentication gate.
type IUserDirectory interface {
	FindByEmail(email string) (domain.User, error)
}

// IMembership answers subscribe-time authorization: may this user attach
// to that conversation's broadcast address.
type IMembership interface {
	IsParticipant(conversationID, userID uuid.UUID) (bool, error)
}

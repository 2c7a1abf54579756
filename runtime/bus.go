// Package runtime wires the in-process event pipeline: the bus that accepts
// domain events from services, the registry of live subscriber connections,
// and the orchestrator that runs the workers in between.
package runtime

import (
	"log/slog"

	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

// Bus decouples event producers from the dispatch pipeline.
//
// Publish never blocks the caller: when the buffer is full the event is
// dropped and counted. The bus is not a message broker and offers no
// durability or retries.
type Bus struct {
	events  chan event.DomainEvent
	monitor *observability.Monitor
	log     *slog.Logger
}

func NewBus(bufferSize int, monitor *observability.Monitor, log *slog.Logger) *Bus {
	return &Bus{
		events:  make(chan event.DomainEvent, bufferSize),
		monitor: monitor,
		log:     log,
	}
}

// Publish enqueues the event for asynchronous dispatch.
// A full buffer drops the event rather than blocking the producer.
func (b *Bus) Publish(e event.DomainEvent) {
	select {
	case b.events <- e:
		b.monitor.IncrPublished()
	default:
		b.monitor.IncrDropped()
		b.log.Warn("Event bus full, dropping event", "conversation", e.ConversationID())
	}
}

// Events exposes the receive side consumed by the pipeline workers.
func (b *Bus) Events() chan event.DomainEvent { return b.events }

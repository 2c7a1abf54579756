package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/moderation"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
	"github.com/ahmedmirza994/whatsapp-sub001/runtime/workers"
)

//go:embed censored/*
var censoredFolder embed.FS

// Orchestrator prepares and supervises the event pipeline:
//
//	bus -> censor -> dispatch lanes -> registry -> connections
//
// The censor stage hashes events onto a fixed set of lanes by conversation,
// so a dispatch pool of several workers still delivers each conversation's
// events in publish order.
type Orchestrator struct {
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	bus             *Bus
	monitor         *observability.Monitor
	numDispatchers  int
	bufferSize      int
	charReplacement rune
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, registry *Registry,
	bus *Bus, monitor *observability.Monitor,
	numDispatchers, bufferSize int, charReplacement rune) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		bus:             bus,
		monitor:         monitor,
		numDispatchers:  numDispatchers,
		bufferSize:      bufferSize,
		charReplacement: charReplacement,
	}
}

// Start builds the pipeline workers and runs them under supervision.
// Heavy preparation (loading dictionaries, building the Aho-Corasick
// automaton) happens before any goroutine starts. Start does not block;
// the supervisor runs until Stop is called or the context is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderator, err := o.prepareModerator("censored")
	if err != nil {
		return err
	}

	lanes := make([]chan event.DomainEvent, o.numDispatchers)
	for i := range lanes {
		lanes[i] = make(chan event.DomainEvent, o.bufferSize)
	}

	o.supervisor.Add(workers.NewCensorWorker(moderator, o.bus.Events(), lanes, o.log))
	for _, lane := range lanes {
		o.supervisor.Add(workers.NewDispatchWorker(o.registry, lane, o.monitor, o.log))
	}

	o.log.Info("Starting pipeline workers", "dispatchers", o.numDispatchers)
	go o.supervisor.Run(ctx)
	return nil
}

// prepareModerator loads censored words and builds the Aho-Corasick automaton.
func (o *Orchestrator) prepareModerator(path string) (moderation.Moderator, error) {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll(path)
	if err != nil {
		return moderation.Moderator{}, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, o.charReplacement)
}

// Stop signals all pipeline workers to shut down.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting pipeline shutdown")
	o.supervisor.Stop()
}

// Package observability aggregates dispatch pipeline metrics. It is the
// collaborator delivery and authentication failures are reported to:
// counters only, no control flow depends on it.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is a point-in-time snapshot for the debug endpoint.
type Stats struct {
	EventsPublished   uint64  `json:"events_published"`
	EventsDropped     uint64  `json:"events_dropped"`
	EventsDiscarded   uint64  `json:"events_discarded"`
	Deliveries        uint64  `json:"deliveries"`
	DeliveryFailures  uint64  `json:"delivery_failures"`
	AuthFailures      uint64  `json:"auth_failures"`
	OpenConnections   int64   `json:"open_connections"`
	RSSBytes          uint64  `json:"rss_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
	CollectedAt       string  `json:"collected_at"`
	ProcessStatsError string  `json:"process_stats_error,omitempty"`
}

// Monitor is safe for concurrent use; all counters are atomic.
type Monitor struct {
	log *slog.Logger

	eventsPublished  uint64
	eventsDropped    uint64
	eventsDiscarded  uint64
	deliveries       uint64
	deliveryFailures uint64
	authFailures     uint64
	openConnections  int64

	proc *process.Process
}

func NewMonitor(log *slog.Logger) *Monitor {
	// A nil proc only disables process stats, never the counters.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
		proc = nil
	}
	return &Monitor{log: log, proc: proc}
}

func (m *Monitor) IncrPublished()       { atomic.AddUint64(&m.eventsPublished, 1) }
func (m *Monitor) IncrDropped()         { atomic.AddUint64(&m.eventsDropped, 1) }
func (m *Monitor) IncrDiscarded()       { atomic.AddUint64(&m.eventsDiscarded, 1) }
func (m *Monitor) IncrDelivery()        { atomic.AddUint64(&m.deliveries, 1) }
func (m *Monitor) IncrDeliveryFailure() { atomic.AddUint64(&m.deliveryFailures, 1) }
func (m *Monitor) IncrAuthFailure()     { atomic.AddUint64(&m.authFailures, 1) }
func (m *Monitor) ConnOpened()          { atomic.AddInt64(&m.openConnections, 1) }
func (m *Monitor) ConnClosed()          { atomic.AddInt64(&m.openConnections, -1) }

// Snapshot reads every counter and samples process memory/CPU.
func (m *Monitor) Snapshot() Stats {
	stats := Stats{
		EventsPublished:  atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:    atomic.LoadUint64(&m.eventsDropped),
		EventsDiscarded:  atomic.LoadUint64(&m.eventsDiscarded),
		Deliveries:       atomic.LoadUint64(&m.deliveries),
		DeliveryFailures: atomic.LoadUint64(&m.deliveryFailures),
		AuthFailures:     atomic.LoadUint64(&m.authFailures),
		OpenConnections:  atomic.LoadInt64(&m.openConnections),
		CollectedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			stats.RSSBytes = memInfo.RSS
		} else {
			stats.ProcessStatsError = err.Error()
		}
		if cpuPercent, err := m.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpuPercent
		}
	}
	return stats
}

// Listen periodically logs a snapshot. It implements contract.Worker so
// the supervisor owns its lifecycle like any other background task.
type ListenWorker struct {
	monitor  *Monitor
	interval time.Duration
	log      *slog.Logger
}

func NewListenWorker(monitor *Monitor, interval time.Duration, log *slog.Logger) *ListenWorker {
	return &ListenWorker{monitor: monitor, interval: interval, log: log}
}

func (w *ListenWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping monitoring worker")
			return nil
		case <-ticker.C:
			stats := w.monitor.Snapshot()
			w.log.Info("Pipeline stats",
				"published", stats.EventsPublished,
				"dropped", stats.EventsDropped,
				"deliveries", stats.Deliveries,
				"delivery_failures", stats.DeliveryFailures,
				"auth_failures", stats.AuthFailures,
				"connections", stats.OpenConnections,
				"rss_mb", stats.RSSBytes/1024/1024)
		}
	}
}

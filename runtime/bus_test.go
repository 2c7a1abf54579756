package runtime

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

func TestBus_Publish_NeverBlocks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	bus := NewBus(2, monitor, log)

	conversationID := uuid.New()
	evt := event.TypingChanged{Conversation: conversationID, UserID: uuid.New(), IsTyping: true}

	// Fill the buffer, then publish one more
	bus.Publish(evt)
	bus.Publish(evt)
	bus.Publish(evt)

	// The overflowing event was dropped, the first two are intact
	stats := monitor.Snapshot()
	req.Equal(uint64(2), stats.EventsPublished)
	req.Equal(uint64(1), stats.EventsDropped)
	req.Len(bus.Events(), 2)
}

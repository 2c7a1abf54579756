// Package sink adapts outbound transports to the EventSink contract.
package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than the read
	// deadline the handler sets on the connection.
	pingPeriod = 54 * time.Second
)

// WebSocketSink wraps one gorilla connection behind the EventSink contract.
//
// Consume enqueues into a bounded buffer and returns quickly; a dedicated
// write pump drains the buffer onto the wire. A slow peer therefore fills
// its own buffer and gets evicted without stalling delivery to others.
type WebSocketSink struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	send     chan event.Envelope
	done     chan struct{}
	once     sync.Once
	log      *slog.Logger
}

func NewWebSocketSink(identity domain.Identity, conn *websocket.Conn,
	bufferSize int, log *slog.Logger) *WebSocketSink {
	return &WebSocketSink{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan event.Envelope, bufferSize),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (s *WebSocketSink) ID() string                { return s.id }
func (s *WebSocketSink) Identity() domain.Identity { return s.identity }

// Consume enqueues the envelope for the write pump.
// It fails when the buffer is full, the sink is closed, or the context expires.
func (s *WebSocketSink) Consume(ctx context.Context, env event.Envelope) error {
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case s.send <- env:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the write pump and closes the underlying connection.
// Safe to call multiple times, from any goroutine.
func (s *WebSocketSink) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// WritePump drains the send buffer onto the wire and keeps the peer alive
// with periodic pings. It runs in its own goroutine, the only one allowed
// to write to the connection, and exits when the sink is closed.
func (s *WebSocketSink) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(env)
			if err != nil {
				s.log.Error("Failed to marshal envelope", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Write failed, closing connection", "connection", s.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

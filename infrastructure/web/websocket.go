package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/domain/event"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
	"github.com/ahmedmirza994/whatsapp-sub001/sink"
)

const (
	maxFrameBytes = 4096
)

// WebSocketHandler upgrades authenticated requests and bridges the
// connection into the registry.
//
// On connect the user is implicitly subscribed to their personal address so
// conversation updates reach them without any client action. Conversation
// subscriptions are driven by frames from the client and gated by
// membership.
type WebSocketHandler struct {
	registry   contract.IRegistry
	bus        contract.IBus
	membership contract.IMembership
	monitor    *observability.Monitor
	bufferSize int
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewWebSocketHandler(registry contract.IRegistry, bus contract.IBus,
	membership contract.IMembership, monitor *observability.Monitor,
	bufferSize int, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		registry:   registry,
		bus:        bus,
		membership: membership,
		monitor:    monitor,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin filtering happens in the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// clientFrame is what peers send us: subscription management and typing.
type clientFrame struct {
	Action         string    `json:"action"`
	ConversationID uuid.UUID `json:"conversationId"`
	IsTyping       bool      `json:"isTyping"`
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.ErrMissingCredential)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "error", err)
		return
	}

	s := sink.NewWebSocketSink(identity, conn, h.bufferSize, h.log)
	go s.WritePump()

	h.monitor.ConnOpened()
	h.registry.Subscribe(s, domain.IdentityAddress(identity.UserID))
	h.log.Info("Connection opened", "connection", s.ID(), "user", identity.UserID)

	go h.readLoop(s, conn, identity)
}

// readLoop consumes client frames until the peer goes away, then tears the
// connection down and announces where the user went offline.
func (h *WebSocketHandler) readLoop(s *sink.WebSocketSink, conn *websocket.Conn, identity domain.Identity) {
	defer func() {
		vacated := h.registry.RemoveConnection(s)
		s.Close()
		h.monitor.ConnClosed()
		h.publishOffline(identity, vacated)
		h.log.Info("Connection closed", "connection", s.ID(), "user", identity.UserID)
	}()

	conn.SetReadLimit(maxFrameBytes)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Read failed", "connection", s.ID(), "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.log.Debug("Dropping malformed frame", "connection", s.ID(), "error", err)
			continue
		}
		h.handleFrame(s, identity, frame)
	}
}

func (h *WebSocketHandler) handleFrame(s *sink.WebSocketSink, identity domain.Identity, frame clientFrame) {
	switch frame.Action {
	case "subscribe":
		if !h.isMember(frame.ConversationID, identity.UserID) {
			h.log.Warn("Subscription refused", "user", identity.UserID, "conversation", frame.ConversationID)
			return
		}
		if h.registry.Subscribe(s, domain.ConversationAddress(frame.ConversationID)) {
			h.bus.Publish(event.UserStatusChanged{
				Conversation: frame.ConversationID,
				UserID:       identity.UserID,
				Online:       true,
			})
		}

	case "unsubscribe":
		if h.registry.Unsubscribe(s, domain.ConversationAddress(frame.ConversationID)) {
			h.bus.Publish(event.UserStatusChanged{
				Conversation: frame.ConversationID,
				UserID:       identity.UserID,
				Online:       false,
			})
		}

	case "typing":
		if !h.isMember(frame.ConversationID, identity.UserID) {
			return
		}
		h.bus.Publish(event.TypingChanged{
			Conversation: frame.ConversationID,
			UserID:       identity.UserID,
			IsTyping:     frame.IsTyping,
		})

	default:
		h.log.Debug("Unknown frame action", "action", frame.Action)
	}
}

func (h *WebSocketHandler) isMember(conversationID, userID uuid.UUID) bool {
	if conversationID == uuid.Nil {
		return false
	}
	ok, err := h.membership.IsParticipant(conversationID, userID)
	if err != nil {
		h.log.Warn("Membership check failed", "conversation", conversationID, "error", err)
		return false
	}
	return ok
}

// publishOffline announces lost presence for every conversation the user
// vacated when the connection died.
func (h *WebSocketHandler) publishOffline(identity domain.Identity, vacated []domain.Address) {
	for _, addr := range vacated {
		if addr.Kind != domain.ConversationScope {
			continue
		}
		h.bus.Publish(event.UserStatusChanged{
			Conversation: addr.ID,
			UserID:       identity.UserID,
			Online:       false,
		})
	}
}

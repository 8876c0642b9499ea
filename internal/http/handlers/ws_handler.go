package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Project-DOFTA/dft/internal/auth"
	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/Project-DOFTA/dft/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub pushes order and escrow events to connected members. Events
// naming a buyer and seller go only to those parties; anything else is
// dropped rather than broadcast.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamOrders, func(event events.Event) {
		for _, memberID := range eventRecipients(event) {
			h.SendToMember(memberID, event)
		}
	})
}

func eventRecipients(event events.Event) []uuid.UUID {
	var out []uuid.UUID
	for _, key := range []string{"buyer_id", "seller_id"} {
		s, ok := event.Payload[key].(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (h *WSHub) SendToMember(memberID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[memberID] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	memberID := claims.MemberID

	h.mu.Lock()
	h.connections[memberID] = append(h.connections[memberID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[memberID]
		for i, c := range conns {
			if c == conn {
				h.connections[memberID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[memberID]) == 0 {
			delete(h.connections, memberID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

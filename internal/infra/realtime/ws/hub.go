// Package ws fans realtime envelopes out to websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"devrim/internal/app/realtime"
	domainuser "devrim/internal/domain/user"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// TypingRelay forwards typing indicators after checking chat membership.
type TypingRelay interface {
	RelayTyping(ctx context.Context, from domainuser.ID, chatID string, start bool) error
}

// Hub tracks every live connection per user. A user may hold several.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]map[*client]struct{}
	relay    TypingRelay
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHub(relay TypingRelay, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]map[*client]struct{}),
		relay:  relay,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browsers are authenticated by token, not cookies
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and runs the connection until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go c.writePump()
	c.readPump()
	return nil
}

// Push implements realtime.Pusher. It returns the number of connections reached.
func (h *Hub) Push(userIDs []string, env realtime.Envelope) int {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode envelope", "type", env.Type, "error", err)
		return 0
	}
	var slow []*client
	delivered := 0
	h.mu.RLock()
	for _, id := range dedupe(userIDs) {
		for c := range h.conns[id] {
			select {
			case c.send <- frame:
				delivered++
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow websocket consumer", "user_id", c.userID)
		h.unregister(c)
	}
	return delivered
}

// Connections reports the live connection count of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]map[*client]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for c := range set {
			c.closeSend()
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("websocket connected", "user_id", c.userID, "connections", len(set))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.conns[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(h.conns, c.userID)
			}
		}
	}
	h.mu.Unlock()
	c.closeSend()
}

func (h *Hub) inbound(c *client, raw []byte) {
	var env realtime.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Debug("malformed websocket frame", "user_id", c.userID, "error", err)
		return
	}
	switch env.Type {
	case realtime.TypeTyping, realtime.TypeStopTyping:
		if h.relay == nil || env.ChatID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.relay.RelayTyping(ctx, domainuser.ID(c.userID), env.ChatID, env.Type == realtime.TypeTyping); err != nil {
			h.logger.Debug("typing relay rejected", "user_id", c.userID, "chat_id", env.ChatID, "error", err)
		}
	default:
		h.logger.Debug("unsupported websocket frame", "user_id", c.userID, "type", env.Type)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ realtime.Pusher = (*Hub)(nil)

// Package realtime is the client side of the websocket push channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apprealtime "devrim/internal/app/realtime"
)

var ErrTransportUnavailable = errors.New("realtime: transport unavailable")

const writeWait = 10 * time.Second

// Handler receives every pushed envelope of one type. Handlers run on the read
// goroutine and must not block.
type Handler = func(apprealtime.Envelope)

// Conn is one websocket connection shared by every observer of a client session.
type Conn struct {
	endpoint string
	token    string
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu       sync.RWMutex
	ws       *websocket.Conn
	done     chan struct{}
	handlers map[string][]Handler

	writeMu sync.Mutex
}

// New derives the websocket endpoint from the API base url.
func New(baseURL, token string, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		endpoint: wsEndpoint(baseURL),
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

func wsEndpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// Connect dials the push channel. A second call while connected is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	endpoint := c.endpoint + "?token=" + url.QueryEscape(c.token)
	ws, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	c.ws = ws
	c.done = make(chan struct{})
	go c.readLoop(ws, c.done)
	return nil
}

// Connected reports whether the reader is still running. It turns false as soon
// as the server side goes away.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ws != nil
}

// On registers h for envelopes of the given type.
func (c *Conn) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Emit sends a client frame such as typing for chatID.
func (c *Conn) Emit(ctx context.Context, event, chatID string, payload any) error {
	env, err := apprealtime.NewEnvelope(event, chatID, 0, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil {
		return ErrTransportUnavailable
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return nil
}

// Close ends the connection and waits for the reader to stop.
func (c *Conn) Close() error {
	c.mu.Lock()
	ws, done := c.ws, c.done
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := ws.Close()
	<-done
	return err
}

func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		close(done)
	}()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				c.logger.Warn("realtime disconnected", "error", err)
			}
			return
		}
		var env apprealtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug("malformed push frame", "error", err)
			continue
		}
		c.mu.RLock()
		handlers := append([]Handler(nil), c.handlers[env.Type]...)
		c.mu.RUnlock()
		for _, h := range handlers {
			h(env)
		}
	}
}

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apprealtime "devrim/internal/app/realtime"
	domainuser "devrim/internal/domain/user"
	"devrim/internal/infra/realtime/ws"
)

type typingRelay struct {
	mu    sync.Mutex
	chats []string
}

func (r *typingRelay) RelayTyping(_ context.Context, _ domainuser.ID, chatID string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
	return nil
}

func (r *typingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

func newHubServer(t *testing.T) (*ws.Hub, *typingRelay, string) {
	t.Helper()
	relay := &typingRelay{}
	hub := ws.NewHub(relay, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" || r.URL.Query().Get("token") != "tok-alice" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = hub.Serve(w, r, "alice")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, relay, srv.URL
}

func TestWSEndpoint(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", wsEndpoint("http://localhost:8080/"))
	assert.Equal(t, "wss://chat.devrim.io/ws", wsEndpoint("https://chat.devrim.io"))
}

func TestConnReceivesPushes(t *testing.T) {
	hub, _, base := newHubServer(t)
	conn := New(base, "tok-alice", nil)
	got := make(chan apprealtime.Envelope, 1)
	conn.On(apprealtime.TypeMessage, func(env apprealtime.Envelope) { got <- env })

	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 10*time.Millisecond)

	env, err := apprealtime.NewEnvelope(apprealtime.TypeMessage, "c1", 3, map[string]string{"_id": "m1"})
	require.NoError(t, err)
	hub.Push([]string{"alice"}, env)

	select {
	case received := <-got:
		assert.Equal(t, "c1", received.ChatID)
		assert.Equal(t, int64(3), received.Revision)
	case <-time.After(2 * time.Second):
		t.Fatal("push not delivered")
	}
}

func TestConnEmitTyping(t *testing.T) {
	hub, relay, base := newHubServer(t)
	conn := New(base, "tok-alice", nil)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Emit(context.Background(), apprealtime.TypeTyping, "c1", nil))
	assert.Eventually(t, func() bool { return relay.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestConnUnavailable(t *testing.T) {
	_, _, base := newHubServer(t)

	conn := New(base, "wrong", nil)
	err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.False(t, conn.Connected())
	assert.ErrorIs(t, conn.Emit(context.Background(), apprealtime.TypeTyping, "c1", nil), ErrTransportUnavailable)
	assert.NoError(t, conn.Close())
}

func TestConnCloseStopsReader(t *testing.T) {
	hub, _, base := newHubServer(t)
	conn := New(base, "tok-alice", nil)
	require.NoError(t, conn.Connect(context.Background()))
	require.NoError(t, conn.Connect(context.Background()))
	require.Eventually(t, func() bool { return hub.Connections("alice") == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	assert.False(t, conn.Connected())
	assert.Eventually(t, func() bool { return hub.Connections("alice") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnNoticesServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
		_ = ws.Close()
	}))
	defer srv.Close()

	conn := New(srv.URL, "tok-alice", nil)
	require.NoError(t, conn.Connect(context.Background()))
	assert.Eventually(t, func() bool { return !conn.Connected() }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, conn.Emit(context.Background(), apprealtime.TypeTyping, "c1", nil), ErrTransportUnavailable)
	assert.NoError(t, conn.Close())
}

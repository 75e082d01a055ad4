package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"devrim/internal/app/bootstrap"
	"devrim/internal/app/services/identity"
	ginserver "devrim/internal/infra/http/gin"
	"devrim/internal/infra/obs"
	"devrim/internal/infra/security"
	"devrim/internal/infra/storage/memory"
	"devrim/internal/infra/validation"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stack := memory.NewStack(nil, "", time.Hour, time.Hour, nil)
	ident := &identity.Service{
		Users:      stack.Users,
		Sessions:   stack.Sessions,
		Tokens:     security.RandomTokenGenerator{},
		Passwords:  security.BcryptHasher{Cost: bcrypt.MinCost},
		SessionTTL: time.Hour,
	}
	require.NoError(t, bootstrap.Seed(context.Background(), stack.Users, ident, []bootstrap.Fixture{
		{ID: "alice", Name: "Alice Liddell", Email: "alice@example.com", Token: "tok-alice", Password: "rabbit-hole"},
		{ID: "bob", Name: "Bob Builder", Token: "tok-bob"},
		{ID: "carol", Name: "Carol Danvers", Token: "tok-carol"},
	}))
	buses := bootstrap.NewBuses(bootstrap.Stack{
		UoWFactory:  stack.Factory,
		Outbox:      stack.Outbox,
		Idempotency: stack.Idempotency,
		Validator:   validation.New(),
		MaxPinned:   2,
	})
	router := ginserver.NewRouter(obs.Middleware{}, obs.HealthHandlers{}, ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Commands: buses.Commands, Queries: buses.Queries},
		Message:        ginserver.MessageHandler{Commands: buses.Commands, Queries: buses.Queries},
		User:           ginserver.UserHandler{Queries: buses.Queries},
		Auth:           ginserver.AuthHandler{Service: ident},
		AuthMiddleware: ginserver.AuthMiddleware{Service: ident}.Handle,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientChatLifecycle(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	alice := New(srv.URL, "tok-alice")
	bob := New(srv.URL, "tok-bob")

	me, err := alice.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.ID)
	assert.Equal(t, "Alice", me.GivenName)

	chat, err := alice.AccessChat(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "sender", chat.ChatName)
	assert.Len(t, chat.Users, 2)

	m1, err := alice.SendMessage(ctx, chat.ID, "hi bob")
	require.NoError(t, err)
	m2, err := bob.SendMessage(ctx, chat.ID, "hi alice")
	require.NoError(t, err)

	page, err := bob.ListMessages(ctx, chat.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	pinned, err := alice.Pin(ctx, chat.ID, m1.ID)
	require.NoError(t, err)
	require.Len(t, pinned.Pinned, 1)
	assert.Equal(t, m1.ID, pinned.Pinned[0].ID)

	again, err := alice.Pin(ctx, chat.ID, m1.ID)
	require.NoError(t, err)
	assert.Len(t, again.Pinned, 1)

	_, err = alice.Pin(ctx, chat.ID, m2.ID)
	require.NoError(t, err)

	require.NoError(t, alice.DeleteMessage(ctx, m1.ID))
	got, err := bob.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, got.Pinned, 1)
	assert.Equal(t, m2.ID, got.Pinned[0].ID)

	unpinned, err := alice.Unpin(ctx, chat.ID, m2.ID)
	require.NoError(t, err)
	assert.Empty(t, unpinned.Pinned)

	chats, err := bob.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	users, err := alice.SearchUsers(ctx, "builder")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
}

func TestClientErrorMapping(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	alice := New(srv.URL, "tok-alice")

	_, err := New(srv.URL, "nope").ListChats(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = alice.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	one, err := alice.AccessChat(ctx, "bob")
	require.NoError(t, err)
	foreign, err := alice.SendMessage(ctx, one.ID, "elsewhere")
	require.NoError(t, err)

	bobClient := New(srv.URL, "tok-bob")
	self, err := bobClient.AccessChat(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, one.ID, self.ID)

	group, err := createGroup(ctx, alice)
	require.NoError(t, err)
	_, err = alice.Pin(ctx, group, foreign.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.ErrorIs(t, err, ErrInvalidReference)

	for i := 0; i < 2; i++ {
		m, err := alice.SendMessage(ctx, one.ID, "pin me")
		require.NoError(t, err)
		_, err = alice.Pin(ctx, one.ID, m.ID)
		require.NoError(t, err)
	}
	extra, err := alice.SendMessage(ctx, one.ID, "one too many")
	require.NoError(t, err)
	_, err = alice.Pin(ctx, one.ID, extra.ID)
	assert.ErrorIs(t, err, ErrPinLimitReached)
}

// createGroup goes through the raw roundTrip since the session core has no
// use for group creation.
func createGroup(ctx context.Context, c *Client) (string, error) {
	var out struct {
		ID string `json:"_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/chats/group", map[string]any{"name": "crew", "users": []string{"bob", "carol"}}, &out, "")
	return out.ID, err
}

func TestClientRejectsMalformedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/users/me":
			_, _ = w.Write([]byte(`{"_id":"","name":""}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	_, err := c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
	_, err = c.ListChats(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	for i := 0; i < 5; i++ {
		_, err := c.ListChats(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	_, err := c.ListChats(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"chat not found","code":"not_found"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	for i := 0; i < 8; i++ {
		_, err := c.GetChat(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(8), hits.Load())
}

func TestClientLoginLogout(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	anon := New(srv.URL, "")

	_, err := anon.Login(ctx, "alice@example.com", "looking-glass")
	assert.ErrorIs(t, err, ErrBadCredentials)

	login, err := anon.Login(ctx, "alice@example.com", "rabbit-hole")
	require.NoError(t, err)
	assert.Equal(t, "alice", login.User.ID)
	assert.Empty(t, anon.Token())

	alice := New(srv.URL, login.Token)
	me, err := alice.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.ID)

	require.NoError(t, alice.Logout(ctx))
	_, err = alice.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devrim/internal/app/dto"
	apprealtime "devrim/internal/app/realtime"
)

type fixture struct {
	api       *fakeAPI
	transport *fakeTransport
	sess      *Context
}

// newFixture seeds three chats: c-carol is the most recent, then c-bob, then
// the group.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	api := newFakeAPI()
	api.addChat(directChat("c-bob", bob, epoch.Add(time.Hour)))
	api.addChat(directChat("c-carol", carol, epoch.Add(2*time.Hour)))
	api.addChat(dto.Chat{ID: "g-crew", ChatName: "crew", IsGroupChat: true, Users: []dto.User{alice, bob, carol}, UpdatedAt: epoch})
	api.addMessage(message("m1", "c-bob", alice, epoch.Add(10*time.Minute)))
	api.addMessage(message("m2", "c-bob", bob, epoch.Add(20*time.Minute)))
	api.addMessage(message("m3", "c-carol", carol, epoch.Add(30*time.Minute)))

	transport := newFakeTransport()
	opts.Identity = fakeIdentity{user: alice}
	opts.API = api
	if opts.Transport == nil {
		opts.Transport = transport
	}
	sess, err := Start(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return &fixture{api: api, transport: transport, sess: sess}
}

func messageIDs(msgs []dto.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func pinnedIDs(t *testing.T, s *Context, chatID string) []string {
	t.Helper()
	c, ok := s.store.Chat(chatID)
	require.True(t, ok)
	return messageIDs(c.Pinned)
}

func TestStartLoadsDirectory(t *testing.T) {
	f := newFixture(t, Options{})
	assert.True(t, f.sess.Online())
	assert.Equal(t, "alice", f.sess.Me().ID)

	entries := f.sess.Directory()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c-carol", "c-bob", "g-crew"}, []string{entries[0].ChatID, entries[1].ChatID, entries[2].ChatID})
	assert.Equal(t, "Carol Danvers", entries[0].Label)
	assert.Equal(t, "Carol: content of m3", entries[0].Preview)
	assert.Equal(t, "Bob Builder", entries[1].Label)
	assert.Equal(t, "https://img/bob.png", entries[1].Avatar)
	assert.Equal(t, "crew", entries[2].Label)
	assert.Empty(t, entries[2].Preview)
}

func TestBumpedChatMovesToTop(t *testing.T) {
	f := newFixture(t, Options{})

	f.sess.AddIncomingMessage(message("m9", "g-crew", bob, epoch.Add(3*time.Hour)))
	entries := f.sess.Directory()
	assert.Equal(t, "g-crew", entries[0].ChatID)
	assert.Equal(t, "Bob: content of m9", entries[0].Preview)

	c, _ := f.sess.store.Chat("c-bob")
	c.Revision++
	c.UpdatedAt = epoch.Add(4 * time.Hour)
	require.True(t, f.sess.ApplyChat(c))
	assert.Equal(t, "c-bob", f.sess.Directory()[0].ChatID)
}

func TestSelectIsLocal(t *testing.T) {
	f := newFixture(t, Options{})
	before := len(f.api.calls)

	require.NoError(t, f.sess.Select("c-bob"))
	require.NoError(t, f.sess.Select("c-bob"))
	cur, ok := f.sess.Current()
	require.True(t, ok)
	assert.Equal(t, "c-bob", cur.ID)
	assert.Equal(t, before, len(f.api.calls))

	assert.ErrorIs(t, f.sess.Select("nope"), ErrNotFound)
	_, ok = f.sess.Current()
	assert.False(t, ok)
	assert.Nil(t, f.sess.Messages())
}

func TestOpenUnknownChatClearsSelection(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.sess.Open(context.Background(), "c-bob"))

	err := f.sess.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := f.sess.Current()
	assert.False(t, ok)
}

func TestPinTwiceKeepsSingleEntry(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	assert.Equal(t, []string{"m1"}, pinnedIDs(t, f.sess, "c-bob"))
	assert.Equal(t, int64(2), f.api.chats["c-bob"].Revision)
}

func TestPinOrderFollowsPinTime(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	require.NoError(t, f.sess.Unpin(ctx, "c-bob", "m2"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))
	assert.Equal(t, []string{"m1", "m2"}, pinnedIDs(t, f.sess, "c-bob"))
}

func TestUnpinTwiceIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))

	require.NoError(t, f.sess.Unpin(ctx, "c-bob", "m1"))
	require.NoError(t, f.sess.Unpin(ctx, "c-bob", "m1"))
	assert.Equal(t, []string{"m2"}, pinnedIDs(t, f.sess, "c-bob"))
	assert.Equal(t, []string{"m2"}, messageIDs(f.api.chats["c-bob"].Pinned))
}

func TestUnpinReachesServerWhenLocalPinsAreStale(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr = errDial
	f := newFixture(t, Options{Transport: transport})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	// bob pins m2 while we receive no pushes
	_, err := f.api.Pin(ctx, "c-bob", "m2")
	require.NoError(t, err)
	assert.Empty(t, pinnedIDs(t, f.sess, "c-bob"))

	require.NoError(t, f.sess.Unpin(ctx, "c-bob", "m2"))
	assert.Empty(t, f.api.chats["c-bob"].Pinned)
	assert.Empty(t, pinnedIDs(t, f.sess, "c-bob"))
	assert.Equal(t, 1, f.api.callCount("unpin "))
}

func TestPinReachesServerWhenAlreadyPinnedLocally(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))

	// the connection drops, then bob unpins m1
	f.transport.drop()
	_, err := f.api.Unpin(ctx, "c-bob", "m1")
	require.NoError(t, err)

	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	assert.Equal(t, []string{"m1"}, messageIDs(f.api.chats["c-bob"].Pinned))
	assert.Equal(t, []string{"m1"}, pinnedIDs(t, f.sess, "c-bob"))
}

func TestPinForeignMessageRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-carol"))
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))

	err := f.sess.Pin(ctx, "c-bob", "m3")
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, 1, f.api.callCount("pin "))
	assert.Equal(t, 0, f.api.callCount("unpin "))

	// unknown locally, rejected by the server
	err = f.sess.Pin(ctx, "c-bob", "ghost")
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, []string{"m1"}, pinnedIDs(t, f.sess, "c-bob"))

	assert.ErrorIs(t, f.sess.Unpin(ctx, "c-bob", "m3"), ErrInvalidReference)
	assert.ErrorIs(t, f.sess.Pin(ctx, "nope", "m1"), ErrNotFound)
}

func TestPinLimitComesFromServer(t *testing.T) {
	f := newFixture(t, Options{})
	f.api.maxPinned = 2
	ctx := context.Background()
	f.api.addMessage(message("m4", "c-bob", bob, epoch.Add(40*time.Minute)))
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))
	assert.ErrorIs(t, f.sess.Pin(ctx, "c-bob", "m4"), ErrPinLimitReached)
	assert.Equal(t, []string{"m1", "m2"}, pinnedIDs(t, f.sess, "c-bob"))
	// already pinned stays a no-op at the cap
	assert.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	assert.Equal(t, []string{"m1", "m2"}, pinnedIDs(t, f.sess, "c-bob"))
}

func TestPinBeyondDefaultCapWhenServerAllows(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	for i := range 51 {
		f.api.addMessage(message(fmt.Sprintf("p%02d", i), "c-bob", bob, epoch.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	for i := range 51 {
		require.NoError(t, f.sess.Pin(ctx, "c-bob", fmt.Sprintf("p%02d", i)))
	}
	assert.Len(t, pinnedIDs(t, f.sess, "c-bob"), 51)
}

func TestIncomingMessageForOtherChatLeavesActiveList(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.sess.Open(context.Background(), "c-bob"))
	before := f.sess.Messages()

	f.sess.AddIncomingMessage(message("m9", "c-carol", carol, epoch.Add(3*time.Hour)))
	assert.Equal(t, before, f.sess.Messages())

	top := f.sess.Directory()[0]
	assert.Equal(t, "c-carol", top.ChatID)
	assert.Equal(t, "Carol: content of m9", top.Preview)
	assert.Equal(t, 1, top.Unread)

	f.sess.AddIncomingMessage(message("m10", "c-bob", bob, epoch.Add(4*time.Hour)))
	assert.Equal(t, []string{"m1", "m2", "m10"}, messageIDs(f.sess.Messages()))
	assert.Equal(t, 0, f.sess.Directory()[0].Unread)
}

func TestRemoveMessageClearsPins(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
	require.Equal(t, []string{"m1", "m2"}, messageIDs(f.sess.Messages()))

	f.sess.RemoveMessage("m1")
	assert.Equal(t, []string{"m2"}, messageIDs(f.sess.Messages()))
	cur, _ := f.sess.Current()
	assert.Empty(t, cur.Pinned)
}

func TestReselectRestoresState(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))
	wantMessages := f.sess.Messages()
	wantChat, _ := f.sess.Current()

	require.NoError(t, f.sess.Open(ctx, "c-carol"))
	require.NoError(t, f.sess.Select("c-bob"))
	gotChat, _ := f.sess.Current()
	assert.Equal(t, wantMessages, f.sess.Messages())
	assert.Equal(t, wantChat.Pinned, gotChat.Pinned)

	require.NoError(t, f.sess.Select("c-carol"))
	assert.Equal(t, []string{"m3"}, messageIDs(f.sess.Messages()))
	require.NoError(t, f.sess.Select("c-bob"))
	assert.Equal(t, wantMessages, f.sess.Messages())
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))

	f.api.failNext = errors.New("boom")
	assert.Error(t, f.sess.DeleteMessage(ctx, "m2"))
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(f.sess.Messages()))
	assert.Equal(t, []string{"m2"}, pinnedIDs(t, f.sess, "c-bob"))

	require.NoError(t, f.sess.DeleteMessage(ctx, "m2"))
	assert.Equal(t, []string{"m1"}, messageIDs(f.sess.Messages()))
	assert.Empty(t, pinnedIDs(t, f.sess, "c-bob"))
	cur, _ := f.sess.Current()
	require.NotNil(t, cur.LatestMessage)
	assert.Equal(t, "m1", cur.LatestMessage.ID)
}

func TestFailedPinLeavesStateIntact(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))

	f.api.failNext = errors.New("unavailable")
	assert.Error(t, f.sess.Pin(ctx, "c-bob", "m1"))
	assert.Empty(t, pinnedIDs(t, f.sess, "c-bob"))
}

func TestSend(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.sess.Send(ctx, "hello")
	assert.ErrorIs(t, err, ErrNoActiveChat)

	require.NoError(t, f.sess.Open(ctx, "g-crew"))
	_, err = f.sess.Send(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	f.api.now = epoch.Add(5 * time.Hour)
	m, err := f.sess.Send(ctx, "hello crew")
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, messageIDs(f.sess.Messages()))
	top := f.sess.Directory()[0]
	assert.Equal(t, "g-crew", top.ChatID)
	assert.Equal(t, "Alice: hello crew", top.Preview)
	assert.Zero(t, top.Unread)
}

func TestLoadOlder(t *testing.T) {
	f := newFixture(t, Options{PageSize: 1})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	assert.Equal(t, []string{"m2"}, messageIDs(f.sess.Messages()))

	n, err := f.sess.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(f.sess.Messages()))

	n, err = f.sess.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAccessOpensDirectChat(t *testing.T) {
	f := newFixture(t, Options{})
	c, err := f.sess.Access(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "c-bob", c.ID)
	cur, ok := f.sess.Current()
	require.True(t, ok)
	assert.Equal(t, "c-bob", cur.ID)
}

func TestPushesApplyToStore(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.sess.Open(context.Background(), "c-bob"))
	var updates []Update
	f.sess.Watch(func(u Update) { updates = append(updates, u) })

	f.transport.push(apprealtime.TypeMessage, "c-bob", 2, message("m5", "c-bob", bob, epoch.Add(time.Hour)))
	assert.Equal(t, []string{"m1", "m2", "m5"}, messageIDs(f.sess.Messages()))

	// a replayed push is applied once
	f.transport.push(apprealtime.TypeMessage, "c-bob", 2, message("m5", "c-bob", bob, epoch.Add(time.Hour)))
	assert.Len(t, f.sess.Messages(), 3)

	f.transport.push(apprealtime.TypeMessageDeleted, "c-bob", 3, apprealtime.MessageDeletedData{ChatID: "c-bob", MessageID: "m5"})
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(f.sess.Messages()))

	f.transport.push(apprealtime.TypeTyping, "c-bob", 0, apprealtime.TypingData{UserID: "bob"})

	require.Len(t, updates, 3)
	assert.Equal(t, UpdateMessage, updates[0].Kind)
	assert.Equal(t, UpdateMessageDeleted, updates[1].Kind)
	assert.Equal(t, UpdateTyping, updates[2].Kind)
	assert.Equal(t, "bob", updates[2].UserID)
}

func TestDeletePushBeforeMessage(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.sess.Open(context.Background(), "c-bob"))

	f.transport.push(apprealtime.TypeMessageDeleted, "c-bob", 5, apprealtime.MessageDeletedData{ChatID: "c-bob", MessageID: "late"})
	f.transport.push(apprealtime.TypeMessage, "c-bob", 4, message("late", "c-bob", bob, epoch.Add(time.Hour)))
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(f.sess.Messages()))
}

func TestChatPushRevisionGate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	stale, _ := f.sess.Current()
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))

	f.transport.push(apprealtime.TypeChatUpdated, "c-bob", stale.Revision, stale)
	assert.Equal(t, []string{"m1"}, pinnedIDs(t, f.sess, "c-bob"))

	fresh, _ := f.sess.Current()
	fresh.Revision++
	fresh.ChatName = "sender"
	fresh.Pinned = nil
	f.transport.push(apprealtime.TypeChatUpdated, "c-bob", fresh.Revision, fresh)
	assert.Empty(t, pinnedIDs(t, f.sess, "c-bob"))
}

func TestDegradesWithoutTransport(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr = errDial
	f := newFixture(t, Options{Transport: transport})
	ctx := context.Background()

	assert.False(t, f.sess.Online())
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	assert.ErrorIs(t, f.sess.Typing(ctx, true), ErrTransportUnavailable)

	_, err := f.sess.Send(ctx, "still works")
	assert.NoError(t, err)
	assert.NoError(t, f.sess.Pin(ctx, "c-bob", "m1"))
}

func TestTypingAndClose(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, f.sess.Typing(ctx, true), ErrNoActiveChat)

	require.NoError(t, f.sess.Select("c-bob"))
	require.NoError(t, f.sess.Typing(ctx, true))
	require.NoError(t, f.sess.Typing(ctx, false))
	require.Len(t, f.transport.emitted, 2)
	assert.Equal(t, apprealtime.TypeTyping, f.transport.emitted[0].Type)
	assert.Equal(t, apprealtime.TypeStopTyping, f.transport.emitted[1].Type)
	assert.Equal(t, "c-bob", f.transport.emitted[0].ChatID)

	require.NoError(t, f.sess.Close())
	require.NoError(t, f.sess.Close())
	assert.True(t, f.transport.closed)
	assert.False(t, f.sess.Online())
}

func TestDroppedConnectionGoesOffline(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Select("c-bob"))
	require.True(t, f.sess.Online())

	f.transport.drop()
	assert.False(t, f.sess.Online())
	assert.ErrorIs(t, f.sess.Typing(ctx, true), ErrTransportUnavailable)
	assert.Empty(t, f.transport.emitted)
}

func TestFirstPushSeedsSelectedChat(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.sess.Select("c-bob"))
	require.Empty(t, f.sess.Messages())

	f.transport.push(apprealtime.TypeMessage, "c-bob", 2, message("m5", "c-bob", bob, epoch.Add(time.Hour)))
	assert.Equal(t, []string{"m5"}, messageIDs(f.sess.Messages()))

	// a chat that is neither active nor loaded still gets no list
	f.sess.AddIncomingMessage(message("m6", "c-carol", carol, epoch.Add(2*time.Hour)))
	assert.Empty(t, f.sess.store.Messages("c-carol"))
}

func TestUnpinDeletedMessageIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.sess.Open(ctx, "c-bob"))
	require.NoError(t, f.sess.Pin(ctx, "c-bob", "m2"))
	require.NoError(t, f.sess.DeleteMessage(ctx, "m2"))

	assert.NoError(t, f.sess.Unpin(ctx, "c-bob", "m2"))
	assert.ErrorIs(t, f.sess.Pin(ctx, "c-bob", "m2"), ErrInvalidReference)
	assert.Equal(t, 0, f.api.callCount("unpin "))
}

func TestMalformedTypingPushDropped(t *testing.T) {
	f := newFixture(t, Options{})
	var updates []Update
	f.sess.Watch(func(u Update) { updates = append(updates, u) })

	f.transport.push(apprealtime.TypeTyping, "c-bob", 0, "not an object")
	f.transport.push(apprealtime.TypeTyping, "c-bob", 0, apprealtime.TypingData{})
	assert.Empty(t, updates)

	f.transport.push(apprealtime.TypeStopTyping, "c-bob", 0, apprealtime.TypingData{UserID: "bob"})
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateStopTyping, updates[0].Kind)
}

func TestStartRequiresCollaborators(t *testing.T) {
	_, err := Start(context.Background(), Options{})
	assert.Error(t, err)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"devrim/internal/app/dto"
	apprealtime "devrim/internal/app/realtime"
)

var (
	alice = dto.User{ID: "alice", Name: "Alice Liddell", GivenName: "Alice", Picture: "https://img/alice.png"}
	bob   = dto.User{ID: "bob", Name: "Bob Builder", GivenName: "Bob", Picture: "https://img/bob.png"}
	carol = dto.User{ID: "carol", Name: "Carol Danvers", GivenName: "Carol"}

	epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeIdentity struct{ user dto.User }

func (f fakeIdentity) CurrentUser(context.Context) (dto.User, error) { return f.user, nil }

// fakeAPI keeps just enough server state to answer the session core.
type fakeAPI struct {
	mu       sync.Mutex
	chats    map[string]dto.Chat
	messages map[string][]dto.Message
	calls    []string
	failNext error
	now      time.Time
	seq      int

	// maxPinned caps pins server side; zero means no cap.
	maxPinned int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{chats: map[string]dto.Chat{}, messages: map[string][]dto.Message{}, now: epoch}
}

func (f *fakeAPI) addChat(c dto.Chat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Revision == 0 {
		c.Revision = 1
	}
	f.chats[c.ID] = c
}

func (f *fakeAPI) addMessage(m dto.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.Chat] = append(f.messages[m.Chat], m)
	c := f.chats[m.Chat]
	latest := m
	c.LatestMessage = &latest
	if m.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = m.CreatedAt
	}
	f.chats[m.Chat] = c
}

func (f *fakeAPI) record(call string) error {
	f.calls = append(f.calls, call)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeAPI) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListChats(context.Context) ([]dto.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list"); err != nil {
		return nil, err
	}
	out := make([]dto.Chat, 0, len(f.chats))
	for _, c := range f.chats {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeAPI) GetChat(_ context.Context, chatID string) (dto.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get " + chatID); err != nil {
		return dto.Chat{}, err
	}
	c, ok := f.chats[chatID]
	if !ok {
		return dto.Chat{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeAPI) AccessChat(_ context.Context, userID string) (dto.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("access " + userID); err != nil {
		return dto.Chat{}, err
	}
	for _, c := range f.chats {
		if !c.IsGroupChat && slices.ContainsFunc(c.Users, func(u dto.User) bool { return u.ID == userID }) {
			return c, nil
		}
	}
	c := dto.Chat{ID: "direct-" + userID, ChatName: "sender", Users: []dto.User{alice, {ID: userID, Name: userID}}, Revision: 1, UpdatedAt: f.now}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, chatID string, before time.Time, limit int) (dto.MessageList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("messages " + chatID); err != nil {
		return dto.MessageList{}, err
	}
	var items []dto.Message
	for _, m := range f.messages[chatID] {
		if before.IsZero() || m.CreatedAt.Before(before) {
			items = append(items, m)
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return dto.MessageList{Items: items}, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID, content string) (dto.Message, error) {
	f.mu.Lock()
	if err := f.record("send " + chatID); err != nil {
		f.mu.Unlock()
		return dto.Message{}, err
	}
	f.seq++
	f.now = f.now.Add(time.Minute)
	m := dto.Message{ID: fmt.Sprintf("sent-%d", f.seq), Sender: alice, Content: content, Chat: chatID, CreatedAt: f.now, UpdatedAt: f.now}
	f.mu.Unlock()
	f.addMessage(m)
	return m, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete " + messageID); err != nil {
		return err
	}
	for chatID, list := range f.messages {
		f.messages[chatID] = slices.DeleteFunc(list, func(m dto.Message) bool { return m.ID == messageID })
	}
	return nil
}

func (f *fakeAPI) Pin(_ context.Context, chatID, messageID string) (dto.Chat, error) {
	return f.togglePin("pin", chatID, messageID, true)
}

func (f *fakeAPI) Unpin(_ context.Context, chatID, messageID string) (dto.Chat, error) {
	return f.togglePin("unpin", chatID, messageID, false)
}

func (f *fakeAPI) togglePin(call, chatID, messageID string, add bool) (dto.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call + " " + chatID); err != nil {
		return dto.Chat{}, err
	}
	c, ok := f.chats[chatID]
	if !ok {
		return dto.Chat{}, ErrNotFound
	}
	idx := slices.IndexFunc(f.messages[chatID], func(m dto.Message) bool { return m.ID == messageID })
	if idx < 0 {
		return dto.Chat{}, ErrInvalidReference
	}
	pinnedAt := slices.IndexFunc(c.Pinned, func(m dto.Message) bool { return m.ID == messageID })
	switch {
	case add && pinnedAt < 0 && f.maxPinned > 0 && len(c.Pinned) >= f.maxPinned:
		return dto.Chat{}, ErrPinLimitReached
	case add && pinnedAt < 0:
		c.Pinned = append(slices.Clone(c.Pinned), f.messages[chatID][idx])
	case !add && pinnedAt >= 0:
		c.Pinned = slices.Delete(slices.Clone(c.Pinned), pinnedAt, pinnedAt+1)
	default:
		return c, nil
	}
	f.now = f.now.Add(time.Minute)
	c.UpdatedAt = f.now
	c.Revision++
	f.chats[chatID] = c
	return c, nil
}

var errDial = errors.New("dial refused")

// fakeTransport dispatches pushes synchronously.
type fakeTransport struct {
	mu         sync.Mutex
	handlers   map[string][]func(apprealtime.Envelope)
	connectErr error
	emitted    []apprealtime.Envelope
	closed     bool
	dropped    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string][]func(apprealtime.Envelope){}}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = false
	return f.connectErr
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectErr == nil && !f.closed && !f.dropped
}

// drop simulates the server going away without a close from our side.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.dropped = true
	f.mu.Unlock()
}

func (f *fakeTransport) On(event string, h func(apprealtime.Envelope)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeTransport) Emit(_ context.Context, event, chatID string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, apprealtime.Envelope{Type: event, ChatID: chatID})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) push(kind, chatID string, revision int64, data any) {
	env, err := apprealtime.NewEnvelope(kind, chatID, revision, data)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	handlers := slices.Clone(f.handlers[kind])
	f.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

func message(id, chatID string, sender dto.User, at time.Time) dto.Message {
	return dto.Message{ID: id, Sender: sender, Content: "content of " + id, Chat: chatID, CreatedAt: at, UpdatedAt: at}
}

func directChat(id string, other dto.User, updated time.Time) dto.Chat {
	return dto.Chat{ID: id, ChatName: "sender", Users: []dto.User{alice, other}, Revision: 1, UpdatedAt: updated}
}

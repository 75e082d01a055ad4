// Package session holds the client-side chat state of one logged-in user: the
// directory, the active chat and its pins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"devrim/internal/app/dto"
	apprealtime "devrim/internal/app/realtime"
)

// Identity resolves the logged-in user.
type Identity interface {
	CurrentUser(ctx context.Context) (dto.User, error)
}

// API is the REST collaborator. *rest.Client implements it.
type API interface {
	ListChats(ctx context.Context) ([]dto.Chat, error)
	GetChat(ctx context.Context, chatID string) (dto.Chat, error)
	AccessChat(ctx context.Context, userID string) (dto.Chat, error)
	ListMessages(ctx context.Context, chatID string, before time.Time, limit int) (dto.MessageList, error)
	SendMessage(ctx context.Context, chatID, content string) (dto.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	Pin(ctx context.Context, chatID, messageID string) (dto.Chat, error)
	Unpin(ctx context.Context, chatID, messageID string) (dto.Chat, error)
}

// Transport is the push channel. *realtime.Conn implements it.
type Transport interface {
	Connect(ctx context.Context) error
	On(event string, h func(apprealtime.Envelope))
	Emit(ctx context.Context, event, chatID string, payload any) error
	// Connected turns false once the connection drops or is closed.
	Connected() bool
	Close() error
}

type Options struct {
	Identity  Identity
	API       API
	Transport Transport
	Logger    *slog.Logger
	PageSize  int
}

// UpdateKind names what changed in an Update.
type UpdateKind string

const (
	UpdateMessage        UpdateKind = "message"
	UpdateMessageDeleted UpdateKind = "message.deleted"
	UpdateChat           UpdateKind = "chat"
	UpdateTyping         UpdateKind = "typing"
	UpdateStopTyping     UpdateKind = "stop_typing"
)

// Update is handed to watchers after a pushed event has been applied.
type Update struct {
	Kind      UpdateKind
	ChatID    string
	MessageID string
	UserID    string
	Message   *dto.Message
}

// Context is the chat session of one logged-in user. It is created by Start and
// lives until Close.
type Context struct {
	api       API
	transport Transport
	store     *Store
	logger    *slog.Logger
	pageSize  int

	mu       sync.Mutex
	watchers []func(Update)
	closed   bool
}

// Start resolves the current user, loads the directory and connects the push
// channel. A transport that cannot connect leaves the session REST-only.
func Start(ctx context.Context, opts Options) (*Context, error) {
	if opts.Identity == nil || opts.API == nil {
		return nil, errors.New("session: identity and api are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	me, err := opts.Identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s := &Context{
		api:       opts.API,
		transport: opts.Transport,
		store:     NewStore(me),
		logger:    logger.With("user_id", me.ID),
		pageSize:  opts.PageSize,
	}
	if s.pageSize <= 0 {
		s.pageSize = 50
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	if s.transport != nil {
		s.transport.On(apprealtime.TypeMessage, s.onMessage)
		s.transport.On(apprealtime.TypeMessageDeleted, s.onMessageDeleted)
		s.transport.On(apprealtime.TypeChatUpdated, s.onChatUpdated)
		s.transport.On(apprealtime.TypeTyping, s.onTyping)
		s.transport.On(apprealtime.TypeStopTyping, s.onTyping)
		if err := s.transport.Connect(ctx); err != nil {
			s.logger.Warn("realtime unavailable, continuing without pushes", "error", err)
		}
	}
	return s, nil
}

func (s *Context) Me() dto.User { return s.store.Me() }

// Online reports whether pushes are being received. It follows the transport,
// so a dropped connection reads as offline.
func (s *Context) Online() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	return !closed && s.transport != nil && s.transport.Connected()
}

func (s *Context) Store() *Store { return s.store }

// Refresh reloads the chat list.
func (s *Context) Refresh(ctx context.Context) error {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return err
	}
	for _, c := range chats {
		s.store.PutChat(c)
	}
	return nil
}

func (s *Context) Directory() []Entry { return s.store.Directory() }

// Select makes chatID the active chat without any network call. Selecting the
// active chat again is a no-op. An unknown id clears the selection.
func (s *Context) Select(chatID string) error {
	if chatID == "" {
		s.store.SetActive("")
		return nil
	}
	if s.store.Active() == chatID {
		return nil
	}
	if _, ok := s.store.Chat(chatID); !ok {
		s.store.SetActive("")
		return ErrNotFound
	}
	s.store.SetActive(chatID)
	return nil
}

// Current returns the active chat.
func (s *Context) Current() (dto.Chat, bool) {
	id := s.store.Active()
	if id == "" {
		return dto.Chat{}, false
	}
	return s.store.Chat(id)
}

// Messages returns the active chat's messages, oldest first.
func (s *Context) Messages() []dto.Message {
	id := s.store.Active()
	if id == "" {
		return nil
	}
	return s.store.Messages(id)
}

// Open fetches chatID and its latest page of messages, then selects it.
func (s *Context) Open(ctx context.Context, chatID string) error {
	c, err := s.api.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.store.SetActive("")
		}
		return err
	}
	page, err := s.api.ListMessages(ctx, chatID, time.Time{}, s.pageSize)
	if err != nil {
		return err
	}
	s.store.PutChat(c)
	s.store.SetMessages(chatID, page.Items)
	s.store.SetActive(chatID)
	return nil
}

// Access finds or creates the direct chat with userID and opens it.
func (s *Context) Access(ctx context.Context, userID string) (dto.Chat, error) {
	c, err := s.api.AccessChat(ctx, userID)
	if err != nil {
		return dto.Chat{}, err
	}
	s.store.PutChat(c)
	if err := s.Open(ctx, c.ID); err != nil {
		return dto.Chat{}, err
	}
	held, _ := s.store.Chat(c.ID)
	return held, nil
}

// LoadOlder prepends the page before the oldest cached message of the active
// chat. It returns how many messages were added.
func (s *Context) LoadOlder(ctx context.Context) (int, error) {
	id := s.store.Active()
	if id == "" {
		return 0, ErrNoActiveChat
	}
	cached := s.store.Messages(id)
	if len(cached) == 0 {
		return 0, nil
	}
	page, err := s.api.ListMessages(ctx, id, cached[0].CreatedAt, s.pageSize)
	if err != nil {
		return 0, err
	}
	s.store.MergeMessages(id, page.Items)
	return len(s.store.Messages(id)) - len(cached), nil
}

// AddIncomingMessage applies m. Only the matching chat's list changes; for any
// other chat just the preview, ordering and unread count move.
func (s *Context) AddIncomingMessage(m dto.Message) {
	s.store.AddMessage(m)
}

// RemoveMessage drops messageID locally, including from pins.
func (s *Context) RemoveMessage(messageID string) {
	s.store.RemoveMessage("", messageID)
}

// DeleteMessage deletes on the server first. State is untouched on failure.
func (s *Context) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.store.RemoveMessage("", messageID)
	return nil
}

// Send posts content to the active chat.
func (s *Context) Send(ctx context.Context, content string) (dto.Message, error) {
	id := s.store.Active()
	if id == "" {
		return dto.Message{}, ErrNoActiveChat
	}
	return s.SendTo(ctx, id, content)
}

func (s *Context) SendTo(ctx context.Context, chatID, content string) (dto.Message, error) {
	if strings.TrimSpace(content) == "" {
		return dto.Message{}, ErrEmptyMessage
	}
	m, err := s.api.SendMessage(ctx, chatID, content)
	if err != nil {
		return dto.Message{}, err
	}
	s.store.AddMessage(m)
	return m, nil
}

// Pin adds messageID to the pins of chatID. The local pins may be stale, so
// the request always goes out; the server treats a repeated pin as a no-op and
// enforces the pin limit. A message known to belong elsewhere, or deleted, is
// rejected before any network call.
func (s *Context) Pin(ctx context.Context, chatID, messageID string) error {
	if _, ok := s.store.Chat(chatID); !ok {
		return ErrNotFound
	}
	if err := s.checkReference(chatID, messageID); err != nil {
		return err
	}
	if s.store.Deleted(messageID) {
		return ErrInvalidReference
	}
	updated, err := s.api.Pin(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	s.store.PutChat(updated)
	return nil
}

// Unpin removes messageID from the pins of chatID. An absent pin is a no-op on
// the server, so the request goes out even when the local pins lack the id.
func (s *Context) Unpin(ctx context.Context, chatID, messageID string) error {
	if _, ok := s.store.Chat(chatID); !ok {
		return ErrNotFound
	}
	if err := s.checkReference(chatID, messageID); err != nil {
		return err
	}
	if s.store.Deleted(messageID) {
		return nil
	}
	updated, err := s.api.Unpin(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	s.store.PutChat(updated)
	return nil
}

// ApplyChat stores a server copy of a chat unless it is older than ours.
func (s *Context) ApplyChat(c dto.Chat) bool {
	return s.store.PutChat(c)
}

// Typing tells the other members of the active chat that the user is typing.
func (s *Context) Typing(ctx context.Context, start bool) error {
	id := s.store.Active()
	if id == "" {
		return ErrNoActiveChat
	}
	if !s.Online() {
		return ErrTransportUnavailable
	}
	event := apprealtime.TypeStopTyping
	if start {
		event = apprealtime.TypeTyping
	}
	return s.transport.Emit(ctx, event, id, nil)
}

// Watch registers fn for every applied push.
func (s *Context) Watch(fn func(Update)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Close disconnects the push channel. Later calls are no-ops.
func (s *Context) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.watchers = nil
	s.mu.Unlock()
	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}

func (s *Context) checkReference(chatID, messageID string) error {
	if owner, ok := s.store.Owner(messageID); ok && owner != chatID {
		return ErrInvalidReference
	}
	return nil
}

func (s *Context) onMessage(env apprealtime.Envelope) {
	var m dto.Message
	if err := json.Unmarshal(env.Data, &m); err != nil || m.ID == "" {
		s.logger.Debug("dropping malformed message push", "chat_id", env.ChatID)
		return
	}
	if m.Chat == "" {
		m.Chat = env.ChatID
	}
	if !s.store.AddMessage(m) {
		return
	}
	s.notify(Update{Kind: UpdateMessage, ChatID: m.Chat, MessageID: m.ID, UserID: m.Sender.ID, Message: &m})
}

func (s *Context) onMessageDeleted(env apprealtime.Envelope) {
	var data apprealtime.MessageDeletedData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.MessageID == "" {
		s.logger.Debug("dropping malformed delete push", "chat_id", env.ChatID)
		return
	}
	chatID := data.ChatID
	if chatID == "" {
		chatID = env.ChatID
	}
	s.store.RemoveMessage(chatID, data.MessageID)
	s.notify(Update{Kind: UpdateMessageDeleted, ChatID: chatID, MessageID: data.MessageID})
}

func (s *Context) onChatUpdated(env apprealtime.Envelope) {
	var c dto.Chat
	if err := json.Unmarshal(env.Data, &c); err != nil || c.ID == "" {
		s.logger.Debug("dropping malformed chat push", "chat_id", env.ChatID)
		return
	}
	if !s.store.PutChat(c) {
		s.logger.Debug("stale chat push discarded", "chat_id", c.ID, "revision", c.Revision)
		return
	}
	s.notify(Update{Kind: UpdateChat, ChatID: c.ID})
}

func (s *Context) onTyping(env apprealtime.Envelope) {
	var data apprealtime.TypingData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.UserID == "" {
		s.logger.Debug("dropping malformed typing push", "chat_id", env.ChatID)
		return
	}
	kind := UpdateTyping
	if env.Type == apprealtime.TypeStopTyping {
		kind = UpdateStopTyping
	}
	s.notify(Update{Kind: kind, ChatID: env.ChatID, UserID: data.UserID})
}

func (s *Context) notify(u Update) {
	s.mu.Lock()
	watchers := append([]func(Update){}, s.watchers...)
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(u)
	}
}

package memory

import (
	"log/slog"
	"time"

	appoutbox "devrim/internal/app/outbox"
)

// Stack bundles every in-memory store for STORAGE_DRIVER=memory and tests.
type Stack struct {
	Chats       *ChatRepository
	Messages    *MessageRepository
	Users       *UserRepository
	Sessions    *SessionStore
	Idempotency *IdempotencyStore
	Inbox       *Inbox
	Outbox      *Outbox
	Factory     Factory
}

func NewStack(producer appoutbox.Producer, topicPrefix string, idempotencyTTL, inboxWindow time.Duration, logger *slog.Logger) *Stack {
	s := &Stack{
		Chats:       NewChatRepository(),
		Messages:    NewMessageRepository(),
		Users:       NewUserRepository(),
		Sessions:    NewSessionStore(),
		Idempotency: NewIdempotencyStore(idempotencyTTL),
		Inbox:       NewInbox(inboxWindow),
		Outbox:      NewOutbox(producer, topicPrefix, logger),
	}
	s.Factory = Factory{ChatsRepo: s.Chats, MessagesRepo: s.Messages, UsersRepo: s.Users}
	return s
}

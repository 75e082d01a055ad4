// Package bootstrap assembles the command and query buses over a storage stack.
package bootstrap

import (
	"log/slog"
	"time"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	chatsapp "devrim/internal/app/handlers/chats"
	messagesapp "devrim/internal/app/handlers/messages"
	usersapp "devrim/internal/app/handlers/users"
	"devrim/internal/app/middleware"
	"devrim/internal/app/outbox"
	"devrim/internal/app/queries"
	"devrim/internal/app/services/identity"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
)

// Stack is the infrastructure the buses run on.
type Stack struct {
	UoWFactory   uow.UoWFactory
	Outbox       outbox.Outbox
	Idempotency  middleware.IdempotencyStore
	Validator    middleware.Validator
	Logger       *slog.Logger
	MaxPinned    int
	RetryBackoff time.Duration
	Clock        func() time.Time
	NewID        func() string
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

const conflictAttempts = 3

func NewBuses(s Stack) Buses {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps := chatsapp.Deps{
		UoWFactory: s.UoWFactory,
		Outbox:     s.Outbox,
		Logger:     logger,
		Clock:      s.Clock,
		NewID:      s.NewID,
	}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[chatsapp.AccessChatCommand, dto.Chat](cmdBus, chatsapp.AccessChatKey, &chatsapp.AccessChatHandler{Deps: deps})
	commands.RegisterHandler[chatsapp.CreateGroupCommand, dto.Chat](cmdBus, chatsapp.CreateGroupKey, &chatsapp.CreateGroupHandler{Deps: deps})
	commands.RegisterHandler[chatsapp.RenameGroupCommand, dto.Chat](cmdBus, chatsapp.RenameGroupKey, &chatsapp.RenameGroupHandler{Deps: deps})
	commands.RegisterHandler[chatsapp.AddMemberCommand, dto.Chat](cmdBus, chatsapp.AddMemberKey, &chatsapp.AddMemberHandler{Deps: deps})
	commands.RegisterHandler[chatsapp.RemoveMemberCommand, dto.Chat](cmdBus, chatsapp.RemoveMemberKey, &chatsapp.RemoveMemberHandler{Deps: deps})
	commands.RegisterHandler[chatsapp.PinMessageCommand, dto.Chat](cmdBus, chatsapp.PinMessageKey, &chatsapp.PinMessageHandler{Deps: deps, MaxPinned: s.MaxPinned})
	commands.RegisterHandler[chatsapp.UnpinMessageCommand, dto.Chat](cmdBus, chatsapp.UnpinMessageKey, &chatsapp.UnpinMessageHandler{Deps: deps})
	commands.RegisterHandler[messagesapp.SendMessageCommand, dto.Message](cmdBus, messagesapp.SendMessageKey, &messagesapp.SendMessageHandler{
		UoWFactory: s.UoWFactory, Outbox: s.Outbox, Logger: logger, Clock: s.Clock,
	})
	commands.RegisterHandler[messagesapp.DeleteMessageCommand, messagesapp.DeletedMessage](cmdBus, messagesapp.DeleteMessageKey, &messagesapp.DeleteMessageHandler{
		UoWFactory: s.UoWFactory, Outbox: s.Outbox, Logger: logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[chatsapp.ListChatsQuery, dto.ChatList](queryBus, chatsapp.ListChatsKey, &chatsapp.ListChatsHandler{UoWFactory: s.UoWFactory})
	queries.RegisterHandler[chatsapp.GetChatQuery, dto.Chat](queryBus, chatsapp.GetChatKey, &chatsapp.GetChatHandler{UoWFactory: s.UoWFactory})
	queries.RegisterHandler[messagesapp.ListMessagesQuery, dto.MessageList](queryBus, messagesapp.ListMessagesKey, &messagesapp.ListMessagesHandler{UoWFactory: s.UoWFactory})
	queries.RegisterHandler[usersapp.SearchUsersQuery, dto.UserList](queryBus, usersapp.SearchUsersKey, &usersapp.SearchUsersHandler{UoWFactory: s.UoWFactory})
	queries.RegisterHandler[usersapp.CurrentUserQuery, dto.User](queryBus, usersapp.CurrentUserKey, &usersapp.CurrentUserHandler{UoWFactory: s.UoWFactory})

	backoff := s.RetryBackoff
	if backoff <= 0 {
		backoff = 20 * time.Millisecond
	}
	cmdMWs := []middleware.CommandMiddleware{
		middleware.Logging(logger),
	}
	if s.Validator != nil {
		cmdMWs = append(cmdMWs, middleware.Validation(s.Validator))
	}
	cmdMWs = append(cmdMWs, middleware.Authorization(identity.ActorAuthorizer{}))
	if s.Idempotency != nil {
		cmdMWs = append(cmdMWs, middleware.Idempotency(s.Idempotency, middleware.JSONResultCodec{}))
	}
	if s.Outbox != nil {
		cmdMWs = append(cmdMWs, middleware.OutboxFlush(s.Outbox, logger))
	}
	cmdMWs = append(cmdMWs,
		middleware.RetryOnConflict(conflictAttempts, backoff, domainchat.ErrConcurrentUpdate),
		middleware.Transaction(s.UoWFactory),
	)

	queryMWs := []middleware.QueryMiddleware{middleware.QueryLogging(logger)}
	if s.Validator != nil {
		queryMWs = append(queryMWs, middleware.QueryValidation(s.Validator))
	}
	queryMWs = append(queryMWs, middleware.QueryAuthorization(identity.ActorAuthorizer{}))

	return Buses{
		Commands: middleware.ChainCommands(cmdBus, cmdMWs...),
		Queries:  middleware.ChainQueries(queryBus, queryMWs...),
	}
}

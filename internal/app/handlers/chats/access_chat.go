package chats

import (
	"context"
	"errors"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/middleware"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const AccessChatKey = "chats.access"

// AccessChatCommand finds or creates the one-to-one chat between the actor and UserID.
// The chat id is derived from the pair, so a concurrent creation fails the save
// with ErrConcurrentUpdate and the retry finds the winner's chat.
type AccessChatCommand struct {
	ActorID         string `validate:"required"`
	UserID          string `validate:"required"`
	IdempotencyKeyV string
}

func (c AccessChatCommand) Key() string            { return AccessChatKey }
func (c AccessChatCommand) Actor() domainuser.ID   { return domainuser.ID(c.ActorID) }
func (c AccessChatCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c AccessChatCommand) ResultPrototype() any   { return &dto.Chat{} }

type AccessChatHandler struct {
	Deps
}

func (h *AccessChatHandler) Handle(ctx context.Context, cmd AccessChatCommand) (dto.Chat, error) {
	unit, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Chat{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	actor := domainuser.ID(cmd.ActorID)
	other := domainuser.ID(cmd.UserID)
	if actor == other {
		return dto.Chat{}, domainchat.ErrSelfChat
	}
	if _, err := unit.Users().ByID(ctx, other); err != nil {
		return dto.Chat{}, err
	}

	c, err := unit.Chats().FindDirect(ctx, actor, other)
	switch {
	case err == nil:
	case errors.Is(err, domainchat.ErrNotFound):
		c, err = domainchat.NewDirectChat(domainchat.DirectChatID(actor, other), actor, other, h.now())
		if err != nil {
			return dto.Chat{}, err
		}
		if err := h.save(ctx, unit, c); err != nil {
			return dto.Chat{}, err
		}
		h.logger().Info("direct chat created", "chat_id", c.ID, "members", c.Members)
	default:
		return dto.Chat{}, err
	}

	out, err := handlersupport.PopulateChat(ctx, unit, c)
	if err != nil {
		return dto.Chat{}, err
	}
	if err := unit.CommitIfOwned(); err != nil {
		return dto.Chat{}, err
	}
	return out, nil
}

var _ commands.Handler[AccessChatCommand, dto.Chat] = (*AccessChatHandler)(nil)
var _ middleware.IdempotentCommand = AccessChatCommand{}

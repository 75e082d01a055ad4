package chats

import (
	"context"
	"errors"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const (
	PinMessageKey   = "chats.pin"
	UnpinMessageKey = "chats.unpin"
)

type PinMessageCommand struct {
	ActorID   string `validate:"required"`
	ChatID    string `validate:"required"`
	MessageID string `validate:"required"`
}

func (c PinMessageCommand) Key() string          { return PinMessageKey }
func (c PinMessageCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

type UnpinMessageCommand struct {
	ActorID   string `validate:"required"`
	ChatID    string `validate:"required"`
	MessageID string `validate:"required"`
}

func (c UnpinMessageCommand) Key() string          { return UnpinMessageKey }
func (c UnpinMessageCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

// PinMessageHandler adds a message to the chat's pinned set. Pinning an already
// pinned message returns the chat unchanged.
type PinMessageHandler struct {
	Deps
	MaxPinned int
}

func (h *PinMessageHandler) Handle(ctx context.Context, cmd PinMessageCommand) (dto.Chat, error) {
	limit := h.MaxPinned
	if limit <= 0 {
		limit = domainchat.DefaultMaxPinned
	}
	return h.mutatePins(ctx, cmd.ActorID, cmd.ChatID, cmd.MessageID, func(c *domainchat.Chat, m *domainchat.Message) (bool, error) {
		return c.Pin(m, limit, h.now())
	})
}

type UnpinMessageHandler struct {
	Deps
}

func (h *UnpinMessageHandler) Handle(ctx context.Context, cmd UnpinMessageCommand) (dto.Chat, error) {
	return h.mutatePins(ctx, cmd.ActorID, cmd.ChatID, cmd.MessageID, func(c *domainchat.Chat, m *domainchat.Message) (bool, error) {
		return c.Unpin(m, h.now())
	})
}

func (d Deps) mutatePins(ctx context.Context, actorID, chatID, messageID string, mutate func(*domainchat.Chat, *domainchat.Message) (bool, error)) (dto.Chat, error) {
	unit, err := handlersupport.BeginUnit(ctx, d.UoWFactory)
	if err != nil {
		return dto.Chat{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	c, err := handlersupport.MemberChat(ctx, unit, domainchat.ID(chatID), domainuser.ID(actorID))
	if err != nil {
		return dto.Chat{}, err
	}
	msg, err := unit.Messages().ByID(ctx, domainchat.MessageID(messageID))
	if errors.Is(err, domainchat.ErrMessageNotFound) {
		return dto.Chat{}, domainchat.ErrInvalidReference
	}
	if err != nil {
		return dto.Chat{}, err
	}

	changed, err := mutate(c, msg)
	if err != nil {
		return dto.Chat{}, err
	}
	if changed {
		if err := d.save(ctx, unit, c); err != nil {
			return dto.Chat{}, err
		}
		d.logger().Debug("pinned set changed", "chat_id", c.ID, "message_id", msg.ID, "pinned", len(c.Pinned), "revision", c.Revision)
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

var _ commands.Handler[PinMessageCommand, dto.Chat] = (*PinMessageHandler)(nil)
var _ commands.Handler[UnpinMessageCommand, dto.Chat] = (*UnpinMessageHandler)(nil)

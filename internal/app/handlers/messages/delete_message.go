package messages

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"devrim/internal/app/commands"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/outbox"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const DeleteMessageKey = "messages.delete"

type DeleteMessageCommand struct {
	ActorID   string `validate:"required"`
	MessageID string `validate:"required"`
}

func (c DeleteMessageCommand) Key() string          { return DeleteMessageKey }
func (c DeleteMessageCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

type DeletedMessage struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// DeleteMessageHandler removes the actor's own message and every chat reference to it.
type DeleteMessageHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *DeleteMessageHandler) Handle(ctx context.Context, cmd DeleteMessageCommand) (DeletedMessage, error) {
	unit, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return DeletedMessage{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	actor := domainuser.ID(cmd.ActorID)
	msg, err := unit.Messages().ByID(ctx, domainchat.MessageID(cmd.MessageID))
	if err != nil {
		return DeletedMessage{}, err
	}
	c, err := handlersupport.MemberChat(ctx, unit, msg.ChatID, actor)
	if err != nil {
		return DeletedMessage{}, err
	}
	if err := msg.CanDelete(actor); err != nil {
		return DeletedMessage{}, err
	}
	if err := unit.Messages().Delete(ctx, msg.ID); err != nil {
		return DeletedMessage{}, err
	}

	var fallback domainchat.MessageID
	if c.LatestMessageID == msg.ID {
		latest, err := unit.Messages().Latest(ctx, c.ID)
		switch {
		case err == nil:
			fallback = latest.ID
		case errors.Is(err, domainchat.ErrMessageNotFound):
		default:
			return DeletedMessage{}, err
		}
	}
	c.ForgetMessage(msg.ID, fallback, time.Now())
	if err := unit.Chats().Save(ctx, c); err != nil {
		return DeletedMessage{}, err
	}
	encoder := h.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoder, c.Drain()); err != nil {
		return DeletedMessage{}, err
	}
	if err := unit.CommitIfOwned(); err != nil {
		return DeletedMessage{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("message deleted", "chat_id", c.ID, "message_id", msg.ID, "actor_id", actor)
	}
	return DeletedMessage{ChatID: string(c.ID), MessageID: string(msg.ID)}, nil
}

var _ commands.Handler[DeleteMessageCommand, DeletedMessage] = (*DeleteMessageHandler)(nil)

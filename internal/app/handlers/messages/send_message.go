package messages

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/middleware"
	"devrim/internal/app/outbox"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const SendMessageKey = "messages.send"

type SendMessageCommand struct {
	ActorID         string `validate:"required"`
	ChatID          string `validate:"required"`
	Content         string `validate:"required,max=16000"`
	IdempotencyKeyV string
}

func (c SendMessageCommand) Key() string            { return SendMessageKey }
func (c SendMessageCommand) Actor() domainuser.ID   { return domainuser.ID(c.ActorID) }
func (c SendMessageCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c SendMessageCommand) ResultPrototype() any   { return &dto.Message{} }

// SendMessageHandler stores a message and makes it the chat's latest one.
type SendMessageHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.Message, error) {
	unit, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Message{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	sender := domainuser.ID(cmd.ActorID)
	c, err := handlersupport.MemberChat(ctx, unit, domainchat.ID(cmd.ChatID), sender)
	if err != nil {
		return dto.Message{}, err
	}
	now := time.Now().UTC()
	if h.Clock != nil {
		now = h.Clock().UTC()
	}
	msg, err := domainchat.NewMessage(domainchat.PostParams{
		ID:       domainchat.MessageID(uuid.NewString()),
		ChatID:   c.ID,
		SenderID: sender,
		Content:  cmd.Content,
		Now:      now,
	})
	if err != nil {
		return dto.Message{}, err
	}
	if err := c.RecordMessage(msg, now); err != nil {
		return dto.Message{}, err
	}
	// chat before message: a revision conflict must fail before anything is stored
	if err := unit.Chats().Save(ctx, c); err != nil {
		return dto.Message{}, err
	}
	if err := unit.Messages().Save(ctx, msg); err != nil {
		return dto.Message{}, err
	}
	encoder := h.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, encoder, c.Drain()); err != nil {
		return dto.Message{}, err
	}

	author, err := unit.Users().ByID(ctx, sender)
	if err != nil {
		return dto.Message{}, err
	}
	if err := unit.CommitIfOwned(); err != nil {
		return dto.Message{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("message sent", "chat_id", c.ID, "message_id", msg.ID, "sender_id", sender, "revision", c.Revision)
	}
	return dto.MapMessage(msg, dto.MapUser(author)), nil
}

var _ commands.Handler[SendMessageCommand, dto.Message] = (*SendMessageHandler)(nil)
var _ middleware.IdempotentCommand = SendMessageCommand{}

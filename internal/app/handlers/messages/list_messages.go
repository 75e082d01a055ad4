package messages

import (
	"context"
	"time"

	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/queries"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const ListMessagesKey = "messages.list"

// ListMessagesQuery pages through a chat's history, newest page first, each page
// ordered oldest to newest. Before is exclusive.
type ListMessagesQuery struct {
	ActorID string `validate:"required"`
	ChatID  string `validate:"required"`
	Before  time.Time
	Limit   int `validate:"gte=0,lte=200"`
}

func (q ListMessagesQuery) Key() string          { return ListMessagesKey }
func (q ListMessagesQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type ListMessagesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) (dto.MessageList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.MessageList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	c, err := handlersupport.MemberChat(execCtx, unit, domainchat.ID(q.ChatID), domainuser.ID(q.ActorID))
	if err != nil {
		return dto.MessageList{}, err
	}
	limit := normalizeLimit(q.Limit)
	msgs, err := unit.Messages().ListByChat(execCtx, c.ID, domainchat.ListOptions{Before: q.Before, Limit: limit})
	if err != nil {
		return dto.MessageList{}, err
	}
	dir, err := handlersupport.LoadDirectory(execCtx, unit, nil, msgs...)
	if err != nil {
		return dto.MessageList{}, err
	}
	out := dto.MessageList{Items: make([]dto.Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, dir.Message(m))
	}
	if len(msgs) == limit {
		out.NextCursor = msgs[0].CreatedAt.Format(time.RFC3339Nano)
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

var _ queries.Handler[ListMessagesQuery, dto.MessageList] = (*ListMessagesHandler)(nil)

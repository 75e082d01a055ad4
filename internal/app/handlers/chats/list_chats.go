package chats

import (
	"context"
	"sort"

	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/queries"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const (
	ListChatsKey = "chats.list"
	GetChatKey   = "chats.get"
)

// ListChatsQuery returns the actor's chats, most recently active first.
type ListChatsQuery struct {
	ActorID string `validate:"required"`
}

func (q ListChatsQuery) Key() string          { return ListChatsKey }
func (q ListChatsQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type ListChatsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListChatsHandler) Handle(ctx context.Context, q ListChatsQuery) (dto.ChatList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ChatList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	chats, err := unit.Chats().ListByMember(execCtx, domainuser.ID(q.ActorID))
	if err != nil {
		return dto.ChatList{}, err
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	dir, err := handlersupport.LoadDirectory(execCtx, unit, chats)
	if err != nil {
		return dto.ChatList{}, err
	}
	items := make([]dto.Chat, 0, len(chats))
	for _, c := range chats {
		items = append(items, dir.Chat(c))
	}
	return dto.ChatList{Items: items}, nil
}

type GetChatQuery struct {
	ActorID string `validate:"required"`
	ChatID  string `validate:"required"`
}

func (q GetChatQuery) Key() string          { return GetChatKey }
func (q GetChatQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type GetChatHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetChatHandler) Handle(ctx context.Context, q GetChatQuery) (dto.Chat, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Chat{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	c, err := handlersupport.MemberChat(execCtx, unit, domainchat.ID(q.ChatID), domainuser.ID(q.ActorID))
	if err != nil {
		return dto.Chat{}, err
	}
	return handlersupport.PopulateChat(execCtx, unit, c)
}

var _ queries.Handler[ListChatsQuery, dto.ChatList] = (*ListChatsHandler)(nil)
var _ queries.Handler[GetChatQuery, dto.Chat] = (*GetChatHandler)(nil)

package users

import (
	"context"

	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/queries"
	"devrim/internal/app/uow"
	domainuser "devrim/internal/domain/user"
)

const (
	SearchUsersKey = "users.search"
	CurrentUserKey = "users.me"
)

// SearchUsersQuery matches name or email, never returning the actor.
type SearchUsersQuery struct {
	ActorID string `validate:"required"`
	Search  string `validate:"max=100"`
	Limit   int    `validate:"gte=0,lte=50"`
}

func (q SearchUsersQuery) Key() string          { return SearchUsersKey }
func (q SearchUsersQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type SearchUsersHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *SearchUsersHandler) Handle(ctx context.Context, q SearchUsersQuery) (dto.UserList, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.UserList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	found, err := unit.Users().Search(execCtx, q.Search, domainuser.ID(q.ActorID), limit)
	if err != nil {
		return dto.UserList{}, err
	}
	return dto.UserList{Items: dto.MapUsers(found)}, nil
}

type CurrentUserQuery struct {
	ActorID string `validate:"required"`
}

func (q CurrentUserQuery) Key() string          { return CurrentUserKey }
func (q CurrentUserQuery) Actor() domainuser.ID { return domainuser.ID(q.ActorID) }

type CurrentUserHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CurrentUserHandler) Handle(ctx context.Context, q CurrentUserQuery) (dto.User, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.User{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	u, err := unit.Users().ByID(execCtx, domainuser.ID(q.ActorID))
	if err != nil {
		return dto.User{}, err
	}
	return dto.MapUser(u), nil
}

var _ queries.Handler[SearchUsersQuery, dto.UserList] = (*SearchUsersHandler)(nil)
var _ queries.Handler[CurrentUserQuery, dto.User] = (*CurrentUserHandler)(nil)

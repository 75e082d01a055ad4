package memory

import (
	"context"
	"errors"

	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ChatsRepo    domainchat.Repository
	MessagesRepo domainchat.MessageRepository
	UsersRepo    domainuser.Repository
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a boundary without isolation; writes are visible immediately.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ChatsRepo == nil || f.MessagesRepo == nil || f.UsersRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{chats: f.ChatsRepo, messages: f.MessagesRepo, users: f.UsersRepo}, nil
}

type Unit struct {
	chats    domainchat.Repository
	messages domainchat.MessageRepository
	users    domainuser.Repository
}

func (u *Unit) Chats() domainchat.Repository           { return u.chats }
func (u *Unit) Messages() domainchat.MessageRepository { return u.messages }
func (u *Unit) Users() domainuser.Repository           { return u.users }

func (u *Unit) Commit(ctx context.Context) error   { return nil }
func (u *Unit) Rollback(ctx context.Context) error { return nil }

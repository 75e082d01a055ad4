package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// MessagesRepo may live outside Mongo (Scylla); it then sits outside the transaction.
type Factory struct {
	DB *mongo.Database

	ChatsRepo    domainchat.Repository
	MessagesRepo domainchat.MessageRepository
	UsersRepo    domainuser.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.ChatsRepo == nil || f.MessagesRepo == nil || f.UsersRepo == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		chats:    f.ChatsRepo,
		messages: f.MessagesRepo,
		users:    f.UsersRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	chats    domainchat.Repository
	messages domainchat.MessageRepository
	users    domainuser.Repository
}

func (u *Unit) Chats() domainchat.Repository           { return u.chats }
func (u *Unit) Messages() domainchat.MessageRepository { return u.messages }
func (u *Unit) Users() domainuser.Repository           { return u.users }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.Injector = (*Unit)(nil)

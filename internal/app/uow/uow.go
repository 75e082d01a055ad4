package uow

import (
	"context"
	"errors"

	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork scopes chat, message and user repositories to one transaction.
// Message writes and the chat revision bump that goes with them commit together.
type UnitOfWork interface {
	Chats() domainchat.Repository
	Messages() domainchat.MessageRepository
	Users() domainuser.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// Injector is implemented by units that carry driver state (mongo sessions) in ctx.
type Injector interface {
	InjectContext(ctx context.Context) context.Context
}

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

// Bind returns ctx carrying unit plus any driver state the unit injects.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(Injector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

// Within runs fn inside a unit of work. An enclosing unit in ctx is joined and
// left for its owner to commit; otherwise a new one is begun, committed when fn
// succeeds and rolled back when it fails or panics.
func Within(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := Bind(ctx, unit)
	done := false
	defer func() {
		if !done {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	done = true
	return nil
}

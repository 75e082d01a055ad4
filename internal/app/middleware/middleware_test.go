package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devrim/internal/app/commands"
	"devrim/internal/app/outbox"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

type renameCmd struct {
	ActorID string
	Name    string
	Idem    string
}

func (renameCmd) Key() string              { return "test.rename" }
func (c renameCmd) Actor() domainuser.ID   { return domainuser.ID(c.ActorID) }
func (c renameCmd) IdempotencyKey() string { return c.Idem }
func (c renameCmd) ResultPrototype() any   { return new(string) }

type fakeUnit struct {
	commits, rollbacks int
}

func (u *fakeUnit) Chats() domainchat.Repository           { return nil }
func (u *fakeUnit) Messages() domainchat.MessageRepository { return nil }
func (u *fakeUnit) Users() domainuser.Repository           { return nil }
func (u *fakeUnit) Commit(context.Context) error           { u.commits++; return nil }
func (u *fakeUnit) Rollback(context.Context) error         { u.rollbacks++; return nil }

type fakeFactory struct{ units []*fakeUnit }

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

type fakeBox struct {
	flushes int
	err     error
	ctxErr  error
}

func (b *fakeBox) Add(context.Context, outbox.EventRecord) error { return nil }
func (b *fakeBox) Flush(ctx context.Context) error {
	b.flushes++
	b.ctxErr = ctx.Err()
	return b.err
}

type memIdem struct{ recs map[string]IdempotencyRecord }

func (m *memIdem) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	r, ok := m.recs[key]
	return r, ok, nil
}

func (m *memIdem) Save(_ context.Context, rec IdempotencyRecord) error {
	m.recs[rec.Key] = rec
	return nil
}

func handlerBus(fn func(ctx context.Context, cmd renameCmd) (string, error)) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCmd, string](bus, "test.rename", commands.HandlerFunc[renameCmd, string](fn))
	return bus
}

func TestChainOrder(t *testing.T) {
	var trail []string
	mark := func(name string) CommandMiddleware {
		return Guard(func(context.Context, any) error {
			trail = append(trail, name)
			return nil
		})
	}
	bus := ChainCommands(handlerBus(func(context.Context, renameCmd) (string, error) {
		trail = append(trail, "handler")
		return "ok", nil
	}), mark("outer"), nil, mark("inner"))

	_, err := bus.Dispatch(context.Background(), renameCmd{ActorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, trail)
}

func TestGuardStopsMessage(t *testing.T) {
	denied := errors.New("denied")
	called := false
	bus := ChainCommands(handlerBus(func(context.Context, renameCmd) (string, error) {
		called = true
		return "", nil
	}), Guard(func(context.Context, any) error { return denied }))

	_, err := bus.Dispatch(context.Background(), renameCmd{})
	assert.ErrorIs(t, err, denied)
	assert.False(t, called)
	assert.Panics(t, func() { Validation(nil) })
}

func TestTransactionCommitsOrRollsBack(t *testing.T) {
	factory := &fakeFactory{}
	fail := errors.New("boom")
	bus := ChainCommands(handlerBus(func(ctx context.Context, cmd renameCmd) (string, error) {
		_, ok := uow.FromContext(ctx)
		require.True(t, ok)
		if cmd.Name == "" {
			return "", fail
		}
		return cmd.Name, nil
	}), Transaction(factory))

	res, err := commands.Dispatch[renameCmd, string](context.Background(), bus, renameCmd{Name: "crew"})
	require.NoError(t, err)
	assert.Equal(t, "crew", res)

	_, err = bus.Dispatch(context.Background(), renameCmd{})
	assert.ErrorIs(t, err, fail)

	require.Len(t, factory.units, 2)
	assert.Equal(t, 1, factory.units[0].commits)
	assert.Equal(t, 0, factory.units[0].rollbacks)
	assert.Equal(t, 0, factory.units[1].commits)
	assert.Equal(t, 1, factory.units[1].rollbacks)
}

func TestRetryOnConflictUsesFreshUnits(t *testing.T) {
	factory := &fakeFactory{}
	calls := 0
	bus := ChainCommands(handlerBus(func(context.Context, renameCmd) (string, error) {
		calls++
		if calls < 3 {
			return "", domainchat.ErrConcurrentUpdate
		}
		return "done", nil
	}), RetryOnConflict(3, time.Millisecond, domainchat.ErrConcurrentUpdate), Transaction(factory))

	res, err := commands.Dispatch[renameCmd, string](context.Background(), bus, renameCmd{})
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.Len(t, factory.units, 3)
}

func TestOutboxFlushSurvivesCancelledRequest(t *testing.T) {
	box := &fakeBox{err: errors.New("broker down")}
	bus := ChainCommands(handlerBus(func(context.Context, renameCmd) (string, error) {
		return "ok", nil
	}), OutboxFlush(box, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := commands.Dispatch[renameCmd, string](ctx, bus, renameCmd{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 1, box.flushes)
	assert.NoError(t, box.ctxErr)
}

func TestIdempotencyReplaysPerActor(t *testing.T) {
	store := &memIdem{recs: map[string]IdempotencyRecord{}}
	calls := 0
	bus := ChainCommands(handlerBus(func(_ context.Context, cmd renameCmd) (string, error) {
		calls++
		return cmd.Name, nil
	}), Idempotency(store, nil))
	ctx := context.Background()

	first, err := commands.Dispatch[renameCmd, string](ctx, bus, renameCmd{ActorID: "alice", Name: "a", Idem: "k1"})
	require.NoError(t, err)
	again, err := commands.Dispatch[renameCmd, string](ctx, bus, renameCmd{ActorID: "alice", Name: "b", Idem: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, calls)

	other, err := commands.Dispatch[renameCmd, string](ctx, bus, renameCmd{ActorID: "bob", Name: "b", Idem: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "b", other)
	assert.Equal(t, 2, calls)
	assert.Contains(t, store.recs, "alice:test.rename:k1")
}

package support

import (
	"context"

	"devrim/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit of work in ctx or starts a read-only one.
// cleanup is nil when the unit was inherited.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	return unit, execCtx, func() { _ = unit.Rollback(execCtx) }, nil
}

// ManagedUnit is a write unit of work that a handler may own. When the unit came
// from ctx (transaction middleware) CommitIfOwned and Close are no-ops.
type ManagedUnit struct {
	uow.UnitOfWork
	Ctx       context.Context
	managed   bool
	committed bool
}

func BeginUnit(ctx context.Context, factory uow.UoWFactory) (*ManagedUnit, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &ManagedUnit{UnitOfWork: unit, Ctx: ctx}, nil
	}
	if factory == nil {
		return nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &ManagedUnit{UnitOfWork: unit, Ctx: uow.Bind(ctx, unit), managed: true}, nil
}

func (m *ManagedUnit) CommitIfOwned() error {
	if !m.managed || m.committed {
		return nil
	}
	if err := m.UnitOfWork.Commit(m.Ctx); err != nil {
		return err
	}
	m.committed = true
	return nil
}

// Close rolls back an owned unit that was not committed.
func (m *ManagedUnit) Close() {
	if m.managed && !m.committed {
		_ = m.UnitOfWork.Rollback(m.Ctx)
	}
}

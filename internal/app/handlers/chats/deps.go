package chats

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"devrim/internal/app/outbox"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
)

// Deps is shared by every chat handler.
type Deps struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
	NewID      func() string
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Deps) encoder() outbox.EventEncoder {
	if d.Encoder != nil {
		return d.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// save persists c and stages its pending events in the outbox.
func (d Deps) save(ctx context.Context, unit uow.UnitOfWork, c *domainchat.Chat) error {
	if err := unit.Chats().Save(ctx, c); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, d.Outbox, d.encoder(), c.Drain())
}

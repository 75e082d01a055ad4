package middleware

import (
	"context"
	"log/slog"
	"time"

	"devrim/internal/app/commands"
	"devrim/internal/app/outbox"
)

const flushTimeout = 5 * time.Second

// OutboxFlush publishes the events a committed command staged. The request may
// be cancelled once the response is written, so the flush runs on a detached
// context. Failures stay in the outbox for the worker and are only logged.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			if err := box.Flush(flushCtx); err != nil && logger != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "actor", cmd.Actor(), "error", err)
			}
			return res, nil
		})
	}
}

package middleware

import (
	"context"
	"errors"
	"time"

	"devrim/internal/app/commands"
)

// RetryOnConflict re-dispatches a command when it fails with one of conflicts.
// It must wrap the transaction so every attempt gets a fresh unit of work.
func RetryOnConflict(attempts int, backoff time.Duration, conflicts ...error) CommandMiddleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var lastErr error
			for i := 0; i < attempts; i++ {
				if i > 0 && backoff > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(backoff * time.Duration(i)):
					}
				}
				res, err := next.Dispatch(ctx, cmd)
				if err == nil {
					return res, nil
				}
				lastErr = err
				if !isConflict(err, conflicts) {
					return nil, err
				}
			}
			return nil, lastErr
		})
	}
}

func isConflict(err error, conflicts []error) bool {
	for _, c := range conflicts {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

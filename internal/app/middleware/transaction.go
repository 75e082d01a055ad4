package middleware

import (
	"context"

	"devrim/internal/app/commands"
	"devrim/internal/app/uow"
)

// Transaction gives each command its own unit of work. It sits innermost so a
// conflict retry starts from a fresh read of the chat.
func Transaction(factory uow.UoWFactory) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var res any
			err := uow.Within(ctx, factory, uow.TxOptions{}, func(txCtx context.Context) error {
				var err error
				res, err = next.Dispatch(txCtx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}

package middleware

import (
	"context"

	"devrim/internal/app/commands"
	"devrim/internal/app/queries"
)

// Check inspects a command or query before its handler runs. A non-nil error
// stops the message.
type Check func(ctx context.Context, message any) error

type Validator interface {
	Validate(ctx context.Context, message any) error
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

func Guard(check Check) CommandMiddleware {
	if check == nil {
		panic("middleware: guard check required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryGuard(check Check) QueryMiddleware {
	if check == nil {
		panic("middleware: guard check required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

func Validation(v Validator) CommandMiddleware        { return Guard(validateCheck(v)) }
func QueryValidation(v Validator) QueryMiddleware     { return QueryGuard(validateCheck(v)) }
func Authorization(a Authorizer) CommandMiddleware    { return Guard(authorizeCheck(a)) }
func QueryAuthorization(a Authorizer) QueryMiddleware { return QueryGuard(authorizeCheck(a)) }

func validateCheck(v Validator) Check {
	if v == nil {
		panic("middleware: validator required")
	}
	return v.Validate
}

func authorizeCheck(a Authorizer) Check {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return a.Authorize
}

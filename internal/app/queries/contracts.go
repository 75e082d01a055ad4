package queries

import (
	"context"
	"errors"
	"fmt"

	domainuser "devrim/internal/domain/user"
)

// Query reads state on behalf of Actor. Results are always scoped to what the
// actor may see, so handlers never need a separate visibility check input.
type Query interface {
	Key() string
	Actor() domainuser.ID
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("queries: handler not found")
	ErrInvalidQuery    = errors.New("queries: invalid query for handler")
	ErrResultType      = errors.New("queries: result type mismatch")
	ErrNilBus          = errors.New("queries: nil bus")
)

func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var out R
	if bus == nil {
		return out, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil {
		return out, err
	}
	if res == nil {
		return out, nil
	}
	typed, ok := res.(R)
	if !ok {
		return out, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), res)
	}
	return typed, nil
}

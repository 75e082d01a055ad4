package identity

import (
	"context"
	"errors"

	domainuser "devrim/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("identity: authentication required")
	ErrActorMismatch   = errors.New("identity: actor does not match authenticated user")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID domainuser.ID
	Token  string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// Actored is implemented by commands and queries issued on behalf of a user.
type Actored interface {
	Actor() domainuser.ID
}

// ActorAuthorizer rejects messages whose actor is not the authenticated principal.
type ActorAuthorizer struct{}

func (ActorAuthorizer) Authorize(ctx context.Context, message any) error {
	actored, ok := message.(Actored)
	if !ok {
		return nil
	}
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if actored.Actor() != p.UserID {
		return ErrActorMismatch
	}
	return nil
}

package auth

import (
	"context"
	"errors"
)

type principalKey struct{}

// ErrNoPrincipal is returned when the context carries no authenticated caller.
var ErrNoPrincipal = errors.New("auth: no principal in context")

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the caller attached by the middleware.
func GetPrincipal(ctx context.Context) (Principal, error) {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && p != nil {
		return p, nil
	}
	return nil, ErrNoPrincipal
}

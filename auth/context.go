package auth

import (
	"context"

	"github.com/ahmedmirza994/whatsapp-sub001/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity binds a fully resolved identity to the request context.
// The gate only calls this after every check has passed, so downstream
// code never observes a half-authenticated state.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

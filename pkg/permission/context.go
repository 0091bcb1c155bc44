package permission

import "context"

// identityCtxKey is a private type to prevent collisions with other context keys.
type identityCtxKey struct{}

// WithIdentity stores the session identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the session identity from the context.
// Returns a zero Identity and false if none is present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

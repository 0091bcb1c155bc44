package flagadmin

import (
	"context"
	"net/http"

	"github.com/fieldline/fieldline/pkg/flagstore"
)

type storeCtxKey struct{}

// WithStore attaches the session's flag store to the context. Session
// middleware calls this after authenticating the request.
func WithStore(ctx context.Context, store *flagstore.Store) context.Context {
	return context.WithValue(ctx, storeCtxKey{}, store)
}

// StoreFromContext returns the flag store attached by WithStore.
func StoreFromContext(ctx context.Context) (*flagstore.Store, bool) {
	store, ok := ctx.Value(storeCtxKey{}).(*flagstore.Store)
	return store, ok
}

// ResolveFromContext is a StoreResolver reading the store placed on the
// request context by session middleware.
func ResolveFromContext(r *http.Request) (*flagstore.Store, error) {
	store, ok := StoreFromContext(r.Context())
	if !ok {
		return nil, flagstore.ErrNoSession
	}
	return store, nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/docstore"
	"github.com/fieldline/fieldline/pkg/flagstore"
	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
	"github.com/fieldline/fieldline/svc/flagadmin"
)

// Gateway-set identity headers. The upstream proxy strips these from client
// requests and re-adds them after authentication.
const (
	headerUserID   = "X-User-ID"
	headerTenantID = "X-Tenant-ID"
	headerRole     = "X-Role"
)

// storePool keeps one started flag store per session identity so repeated
// requests reuse the live subscriptions instead of re-subscribing per call.
type storePool struct {
	docs  docstore.Store
	audit auditlog.Writer
	rdb   *redis.Client
	log   *slog.Logger

	mu     sync.Mutex
	stores map[string]*flagstore.Store
	closed bool
}

func newStorePool(docs docstore.Store, audit auditlog.Writer, rdb *redis.Client, log *slog.Logger) *storePool {
	return &storePool{
		docs:   docs,
		audit:  audit,
		rdb:    rdb,
		log:    log,
		stores: make(map[string]*flagstore.Store),
	}
}

// middleware resolves the request identity from gateway headers and attaches
// the session's flag store to the context. Requests without identity pass
// through without a store; the handlers answer 401 for those.
func (p *storePool) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFromHeaders(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		store, err := p.get(id)
		if err != nil {
			p.log.Error("starting session flag store",
				logger.UserID(id.UserID),
				logger.TenantID(id.TenantID),
				logger.Error(err))
			http.Error(w, "permission state unavailable", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(flagadmin.WithStore(r.Context(), store)))
	})
}

// get returns the started store for the identity, creating it on first use.
// Stores outlive the request, so Start gets a background context; the pool
// owns their shutdown.
func (p *storePool) get(id permission.Identity) (*flagstore.Store, error) {
	key := id.TenantID + "\x00" + id.UserID + "\x00" + id.Role.String()

	p.mu.Lock()
	if store, ok := p.stores[key]; ok {
		p.mu.Unlock()
		return store, nil
	}
	p.mu.Unlock()

	store := flagstore.New(p.docs, id,
		flagstore.WithLogger(p.log),
		flagstore.WithAudit(p.audit),
		flagstore.WithSnapshotStore(flagstore.NewRedisSnapshotStore(p.rdb, id)),
	)
	if err := store.Start(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		store.Close()
		return nil, flagstore.ErrStoreClosed
	}
	// Another request may have raced the creation; keep the first one.
	if existing, ok := p.stores[key]; ok {
		store.Close()
		return existing, nil
	}
	p.stores[key] = store
	return store, nil
}

func (p *storePool) close() {
	p.mu.Lock()
	p.closed = true
	stores := p.stores
	p.stores = nil
	p.mu.Unlock()

	for _, store := range stores {
		store.Close()
	}
}

func identityFromHeaders(r *http.Request) (permission.Identity, bool) {
	userID := r.Header.Get(headerUserID)
	tenantID := r.Header.Get(headerTenantID)
	role, err := roles.Parse(r.Header.Get(headerRole))
	if userID == "" || tenantID == "" || err != nil {
		return permission.Identity{}, false
	}
	return permission.Identity{UserID: userID, TenantID: tenantID, Role: role}, true
}

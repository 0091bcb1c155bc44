package flagstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/docstore"
	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/fieldline/fieldline/pkg/notify"
	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
)

// persistTimeout bounds the best-effort offline snapshot write so a slow
// Redis cannot stall flag refreshes.
const persistTimeout = 5 * time.Second

// ChangeOrigin names which side of the session's flag state changed.
type ChangeOrigin string

const (
	OriginTenant   ChangeOrigin = "tenant"
	OriginUser     ChangeOrigin = "user"
	OriginFallback ChangeOrigin = "fallback"
)

// Change is the "permissions changed, re-read them" signal delivered to
// Watch subscribers. It carries no payload beyond its origin: consumers read
// the fresh state through Checker().
type Change struct {
	Origin ChangeOrigin
	At     time.Time
}

// Store maintains the live view of one session's tenant flags and user
// overrides and keeps a permission.Checker rebuilt from the latest observed
// state. Tenant and user snapshots may arrive in any order; each arrival
// swaps in a complete fresh Evaluator, so evaluation never sees
// half-updated state.
type Store struct {
	docs       docstore.Store
	id         permission.Identity
	configured roles.DefaultsSet
	audit      auditlog.Writer
	snapshots  SnapshotStore
	rules      permission.RuleSet
	log        *slog.Logger
	bc         *notify.Broadcaster[Change]
	cacheTTL   time.Duration
	now        func() time.Time
	tenantPath string
	userPath   string

	mu             sync.RWMutex
	closed         bool
	started        bool
	degraded       bool
	tenantFlags    map[string]permission.TenantFlag
	overrides      map[string]permission.UserOverride
	tenantDefaults roles.DefaultsSet
	checker        permission.Checker
	unsubs         []func()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAudit enables best-effort audit records for flag mutations.
func WithAudit(w auditlog.Writer) Option {
	return func(s *Store) { s.audit = w }
}

// WithSnapshotStore enables offline snapshot persistence and fallback.
func WithSnapshotStore(ss SnapshotStore) Option {
	return func(s *Store) { s.snapshots = ss }
}

// WithRoleDefaults sets tenant-configured role defaults, overriding the
// hardcoded table. Defaults embedded in the tenant flag document take
// precedence over this option.
func WithRoleDefaults(ds roles.DefaultsSet) Option {
	return func(s *Store) { s.configured = ds }
}

// WithRules overrides the context rule set handed to each Evaluator.
func WithRules(rs permission.RuleSet) Option {
	return func(s *Store) { s.rules = rs }
}

// WithCacheTTL overrides the per-evaluator decision cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPaths overrides the backing document paths.
func WithPaths(tenantPath, userPath string) Option {
	return func(s *Store) {
		s.tenantPath = tenantPath
		s.userPath = userPath
	}
}

// New creates a Store for one authenticated session. Call Start to begin
// receiving live flag data; until then the store serves hardcoded role
// defaults for the session role.
func New(docs docstore.Store, id permission.Identity, opts ...Option) *Store {
	s := &Store{
		docs:       docs,
		id:         id,
		rules:      permission.DefaultRules(),
		log:        slog.Default(),
		bc:         notify.New[Change](4),
		cacheTTL:   permission.DefaultCacheTTL,
		now:        time.Now,
		tenantPath: "tenant_flags/" + id.TenantID,
		userPath:   "user_overrides/" + id.TenantID + ":" + id.UserID,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.checker = s.buildEvaluator(nil, nil, nil)
	return s
}

// Identity returns the session identity the store was built for.
func (s *Store) Identity() permission.Identity {
	return s.id
}

// Start bootstraps from the persisted offline snapshot, then opens the two
// live subscriptions and waits for each to deliver its initial state. A
// failed tenant subscription is not an error: the store enters degraded mode
// and the application stays usable on fallback permissions.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.bootstrapFromSnapshot(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.subscribe(gctx, s.tenantPath, s.applyTenantSnapshot, true) })
	g.Go(func() error { return s.subscribe(gctx, s.userPath, s.applyUserSnapshot, false) })
	return g.Wait()
}

// bootstrapFromSnapshot installs the persisted offline permission map as the
// interim checker when it is fresh enough. Corrupt or stale snapshots are
// discarded with a warning and the role-default checker from construction
// stays in place.
func (s *Store) bootstrapFromSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}

	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		s.log.Warn("loading offline permission snapshot",
			logger.Component("flagstore"), logger.Error(err))
		return
	}
	if snap == nil {
		return
	}
	if snap.Stale(s.now()) {
		s.log.Warn("discarding stale offline permission snapshot",
			logger.Component("flagstore"), slog.Time("saved_at", snap.SavedAt))
		return
	}

	s.mu.Lock()
	if !s.closed {
		s.degraded = true
		s.checker = permission.NewStatic(snap.Permissions)
	}
	s.mu.Unlock()
}

// subscribe opens one document subscription, applies its initial snapshot
// synchronously, and tails the rest on a goroutine. critical marks the
// tenant side, whose loss triggers the degraded fallback; the user override
// document is optional and its loss only logs.
func (s *Store) subscribe(ctx context.Context, path string, apply func(docstore.Snapshot), critical bool) error {
	sub, err := s.docs.Subscribe(ctx, path)
	if err != nil {
		s.onListenerError(ctx, path, err, critical)
		return nil
	}

	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			s.onListenerError(ctx, path, sub.Err(), critical)
			return nil
		}
		apply(snap)
	case <-ctx.Done():
		sub.Unsubscribe()
		return ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.unsubs = append(s.unsubs, sub.Unsubscribe)
	s.mu.Unlock()

	go s.consume(sub, path, apply, critical)
	return nil
}

func (s *Store) consume(sub docstore.Subscription, path string, apply func(docstore.Snapshot), critical bool) {
	for snap := range sub.Snapshots() {
		apply(snap)
	}
	if err := sub.Err(); err != nil {
		s.onListenerError(context.Background(), path, err, critical)
	}
}

// applyTenantSnapshot rebuilds the evaluator from a fresh tenant flag
// document, persists the flat permission map for offline use, and notifies
// watchers.
func (s *Store) applyTenantSnapshot(snap docstore.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if snap.Exists {
		s.tenantFlags = decodeTenantFlags(snap.Data)
		s.tenantDefaults = decodeRoleDefaults(snap.Data)
	} else {
		s.tenantFlags = nil
		s.tenantDefaults = nil
	}
	s.degraded = false
	checker := s.rebuildLocked()
	s.mu.Unlock()

	if !snap.Exists {
		s.log.Warn("tenant has no flag document, role defaults apply",
			logger.Component("flagstore"), logger.TenantID(s.id.TenantID))
	}

	s.persistSnapshot(checker)
	s.bc.Publish(Change{Origin: OriginTenant, At: s.now()})
}

// applyUserSnapshot rebuilds the evaluator from a fresh user override
// document. Absence of the document is the common case, not an error. While
// the store is degraded the overrides are recorded but not applied: the
// fallback checker stays in place until live tenant data arrives.
func (s *Store) applyUserSnapshot(snap docstore.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if snap.Exists {
		s.overrides = decodeUserOverrides(snap.Data)
	} else {
		s.overrides = nil
	}
	if !s.degraded {
		s.rebuildLocked()
	}
	s.mu.Unlock()

	s.bc.Publish(Change{Origin: OriginUser, At: s.now()})
}

// onListenerError degrades to the freshest fallback available: the persisted
// offline snapshot when it is still within its staleness window, otherwise
// role defaults. Errors never propagate to permission checks.
func (s *Store) onListenerError(ctx context.Context, path string, err error, critical bool) {
	s.log.Error("flag subscription lost",
		logger.Component("flagstore"), logger.Path(path), logger.Error(err))
	if !critical {
		return
	}

	var fallback permission.Checker
	if s.snapshots != nil {
		if snap, loadErr := s.snapshots.Load(ctx); loadErr == nil && snap != nil && !snap.Stale(s.now()) {
			fallback = permission.NewStatic(snap.Permissions)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.degraded = true
	if fallback == nil {
		fallback = s.buildEvaluator(nil, s.overrides, nil)
	}
	s.checker = fallback
	s.mu.Unlock()

	s.bc.Publish(Change{Origin: OriginFallback, At: s.now()})
}

func (s *Store) rebuildLocked() permission.Checker {
	s.checker = s.buildEvaluator(s.tenantFlags, s.overrides, s.tenantDefaults)
	return s.checker
}

func (s *Store) buildEvaluator(
	flags map[string]permission.TenantFlag,
	overrides map[string]permission.UserOverride,
	tenantDefaults roles.DefaultsSet,
) *permission.Evaluator {
	defaults := tenantDefaults
	if defaults == nil {
		defaults = s.configured
	}
	return permission.New(s.id, permission.Snapshot{
		TenantFlags:   flags,
		UserOverrides: overrides,
		RoleDefaults:  defaults,
	},
		permission.WithTTL(s.cacheTTL),
		permission.WithClock(s.now),
		permission.WithRules(s.rules),
	)
}

func (s *Store) persistSnapshot(checker permission.Checker) {
	if s.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	snap := &PermissionSnapshot{Permissions: checker.AllPermissions(), SavedAt: s.now()}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.log.Warn("persisting offline permission snapshot",
			logger.Component("flagstore"), logger.Error(err))
	}
}

// Checker returns the current permission checker. Never nil; before live
// data arrives it evaluates against role defaults.
func (s *Store) Checker() permission.Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checker
}

// Degraded reports whether the store is serving fallback permissions
// instead of live flag data.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Can reports whether the action is permitted under the current state.
func (s *Store) Can(action string) bool {
	return s.Checker().Can(action)
}

// CanContext is Can with a resource context.
func (s *Store) CanContext(action string, rc permission.RuleContext) bool {
	return s.Checker().CanContext(action, rc)
}

// CanEach evaluates each action independently.
func (s *Store) CanEach(actions ...string) map[string]bool {
	return s.Checker().CanEach(actions...)
}

// Evaluate returns the current decision with provenance.
func (s *Store) Evaluate(action string, rc permission.RuleContext) permission.Decision {
	return s.Checker().Evaluate(action, rc)
}

// AllPermissions returns the current bulk permission map.
func (s *Store) AllPermissions() map[string]bool {
	return s.Checker().AllPermissions()
}

// ClearCache drops all cached decisions in the current checker.
func (s *Store) ClearCache() {
	s.Checker().ClearCache()
}

// Watch returns a channel of change signals. The channel closes when the
// context is cancelled or the store closes. Signals may be coalesced; treat
// each one as "re-read the current state".
func (s *Store) Watch(ctx context.Context) <-chan Change {
	return s.bc.Subscribe(ctx).C()
}

// Close revokes both subscriptions together and rejects late callbacks.
// Idempotent. The zero-value permission behavior after Close is whatever
// checker was last installed; long-lived holders should drop the store
// reference on sign-out.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.bc.Close()
}

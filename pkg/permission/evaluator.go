package permission

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/fieldline/fieldline/pkg/cache"
	"github.com/fieldline/fieldline/pkg/roles"
)

const (
	// DefaultCacheTTL bounds how long a cached decision may be served.
	DefaultCacheTTL = 5 * time.Minute

	// defaultCacheCapacity bounds the per-evaluator decision cache. Sized for
	// the realistic action vocabulary of one session plus contextual variants.
	defaultCacheCapacity = 512
)

// Checker is the read-only evaluation surface shared by the live Evaluator
// and the offline Static checker. None of its methods return errors or panic;
// any internal failure resolves to deny.
type Checker interface {
	// Can reports whether the action is permitted for the session identity.
	Can(action string) bool

	// CanContext is Can with a resource context for context rules.
	CanContext(action string, rc RuleContext) bool

	// CanEach evaluates each action independently.
	CanEach(actions ...string) map[string]bool

	// Evaluate returns the decision with provenance.
	Evaluate(action string, rc RuleContext) Decision

	// AllPermissions evaluates the union of all tenant-flag keys, all
	// user-override keys and the role-default actions for the session role.
	AllPermissions() map[string]bool

	// ClearCache invalidates every cached decision.
	ClearCache()
}

// Evaluator resolves permission queries against one immutable Snapshot
// through a strict precedence chain: user override, tenant flag, role
// default, context rule, default deny. It is constructed per authenticated
// session; the decision cache is private to the instance and never shared
// across users or tenants.
type Evaluator struct {
	id       Identity
	snap     Snapshot
	defaults roles.DefaultsSet
	rules    RuleSet
	dc       *cache.TTLCache[string, Decision]
	ttl      time.Duration
	now      func() time.Time
}

var _ Checker = (*Evaluator)(nil)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTTL overrides the decision cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Evaluator) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock overrides the time source, used by tests to exercise flag expiry
// and cache TTL without sleeping.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRules replaces the context rule set. Passing nil disables context rules.
func WithRules(rs RuleSet) Option {
	return func(e *Evaluator) {
		e.rules = rs
	}
}

// New creates an Evaluator for the given session over a point-in-time
// snapshot. The snapshot is not copied; the flag store hands each Evaluator
// its own freshly built Snapshot and never mutates it afterwards.
func New(id Identity, snap Snapshot, opts ...Option) *Evaluator {
	e := &Evaluator{
		id:    id,
		snap:  snap,
		rules: DefaultRules(),
		dc:    cache.NewTTL[string, Decision](defaultCacheCapacity),
		ttl:   DefaultCacheTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.defaults = snap.RoleDefaults
	if e.defaults == nil {
		e.defaults = roles.Defaults()
	}
	return e
}

// Can reports whether the action is permitted. It never panics and resolves
// to false on any internal failure.
func (e *Evaluator) Can(action string) bool {
	return e.Evaluate(action, nil).Allowed
}

// CanContext is Can with a resource context consulted by context rules.
func (e *Evaluator) CanContext(action string, rc RuleContext) bool {
	return e.Evaluate(action, rc).Allowed
}

// CanEach evaluates every action independently; no short-circuiting between
// entries.
func (e *Evaluator) CanEach(actions ...string) map[string]bool {
	out := make(map[string]bool, len(actions))
	for _, action := range actions {
		out[action] = e.Can(action)
	}
	return out
}

// AllPermissions returns one boolean per known action: the union of tenant
// flag keys, user override keys and the role-default set for the session
// role. Used for bulk UI permission priming and the offline snapshot.
func (e *Evaluator) AllPermissions() map[string]bool {
	out := make(map[string]bool)
	for action := range e.snap.TenantFlags {
		out[action] = e.Can(action)
	}
	for action := range e.snap.UserOverrides {
		out[action] = e.Can(action)
	}
	for _, action := range e.defaults.Actions(e.id.Role) {
		out[action] = e.Can(action)
	}
	return out
}

// ClearCache invalidates all cached decisions for this evaluator instance.
func (e *Evaluator) ClearCache() {
	e.dc.Clear()
}

// Evaluate resolves the action through the precedence chain and returns the
// decision with provenance. Results are cached for the configured TTL; cached
// decisions keep their original source. Flag mutations are not visible until
// the TTL lapses, ClearCache is called, or a fresh Evaluator replaces this
// one.
func (e *Evaluator) Evaluate(action string, rc RuleContext) (d Decision) {
	defer func() {
		if recover() != nil {
			d = Decision{Allowed: false, Source: SourceNone, Reason: "internal evaluation failure"}
		}
	}()

	key, cacheable := cacheKey(action, rc)
	if cacheable {
		if cached, ok := e.dc.Get(key, e.now()); ok {
			return cached
		}
	}

	d = e.resolve(action, rc)

	if cacheable {
		e.dc.Put(key, d, e.now().Add(e.ttl))
	}
	return d
}

// resolve walks the precedence chain. Exactly one layer determines the
// outcome; every action resolves to a boolean.
func (e *Evaluator) resolve(action string, rc RuleContext) Decision {
	// Layer 1: user override is authoritative, bypassing everything below.
	if override, ok := e.snap.UserOverrides[action]; ok {
		return Decision{Allowed: override.Enabled, Source: SourceUserOverride, Reason: "user override"}
	}

	// Layer 2: tenant flag, if it targets this user or role.
	if flag, ok := e.snap.TenantFlags[action]; ok {
		if d, decided := e.applyTenantFlag(flag); decided {
			return d
		}
	}

	// Layer 3: role defaults only grant; absence falls through.
	if e.defaults.Granted(e.id.Role, action) {
		return Decision{Allowed: true, Source: SourceRoleDefault, Reason: "granted by role default"}
	}

	// Layer 4: context rules, only when a context was supplied.
	if rc != nil {
		if d, decided := e.applyRules(action, rc); decided {
			return d
		}
	}

	return Decision{Allowed: false, Source: SourceNone, Reason: "no matching permission rule"}
}

// applyTenantFlag returns the flag's verdict and whether the flag applies to
// this session at all. A flag whose targeting does not reach the session role
// or user abstains so lower layers can still grant.
func (e *Evaluator) applyTenantFlag(flag TenantFlag) (Decision, bool) {
	if slices.Contains(flag.ExcludedUsers, e.id.UserID) {
		return Decision{Allowed: false, Source: SourceTenantFlag, Reason: "user explicitly excluded"}, true
	}

	targeted := slices.Contains(flag.TargetedUsers, e.id.UserID) ||
		slices.Contains(flag.TargetedRoles, e.id.Role)
	if !targeted {
		return Decision{}, false
	}

	// An expired flag denies wherever it would otherwise decide, regardless
	// of its enabled value.
	if flag.ExpiresAt != nil && flag.ExpiresAt.Before(e.now()) {
		return Decision{Allowed: false, Source: SourceTenantFlag, Reason: "flag expired"}, true
	}

	return Decision{Allowed: flag.Enabled, Source: SourceTenantFlag, Reason: "tenant flag"}, true
}

// applyRules consults the context rules registered for the action. The first
// definite verdict wins; rules that do not recognize the context abstain.
func (e *Evaluator) applyRules(action string, rc RuleContext) (Decision, bool) {
	for _, rule := range e.rules[action] {
		switch rule(e.id, rc) {
		case Allow:
			return Decision{Allowed: true, Source: SourceContextRule, Reason: "allowed by context rule"}, true
		case Deny:
			return Decision{Allowed: false, Source: SourceContextRule, Reason: "denied by context rule"}, true
		}
	}
	return Decision{}, false
}

// cacheKey builds a stable key from the action and the serialized rule
// context. Identity is fixed per evaluator, so it is implicit in the cache
// instance itself. Contexts that cannot be serialized make the query
// uncacheable rather than failing the evaluation.
func cacheKey(action string, rc RuleContext) (string, bool) {
	if rc == nil {
		return action, true
	}
	// encoding/json sorts map keys, so equal contexts serialize identically.
	data, err := json.Marshal(rc)
	if err != nil {
		return "", false
	}
	return action + "\x00" + string(data), true
}
